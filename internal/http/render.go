package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/pkg/errors"

	"semaphore/dashboard/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

type navItem struct {
	Label string
	Path  string
}

var navByRole = map[session.Role][]navItem{
	session.RoleAdmin: {
		{Label: "Profile", Path: "/dashboard/profile"},
		{Label: "Universidades", Path: "/dashboard/universidades"},
		{Label: "Facultades", Path: "/dashboard/facultades"},
		{Label: "Usuarios", Path: "/dashboard/usuarios"},
		{Label: "Cursos", Path: "/dashboard/cursos"},
	},
	session.RoleTeacher: {
		{Label: "Profile", Path: "/dashboard/profile"},
		{Label: "Mis Cursos", Path: "/dashboard/mis-cursos"},
		{Label: "Estudiantes", Path: "/dashboard/estudiantes"},
		{Label: "Asistencia", Path: "/dashboard/asistencia"},
	},
}

// view is what every template receives.
type view struct {
	Title   string
	Active  string
	User    *session.User
	Nav     []navItem
	Error   string
	Notice  string
	Fields  map[string]string
	Refresh int
	Data    interface{}
}

type pages struct {
	byName map[string]*template.Template
}

var pageNames = []string{
	"login", "wait", "profile",
	"universities", "faculties", "users", "courses",
	"my_courses", "my_students", "attendance",
}

func loadPages() (*pages, error) {
	p := &pages{byName: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, errors.Wrapf(err, "parsing template %s", name)
		}
		p.byName[name] = tmpl
	}
	return p, nil
}

func (s *Server) render(w http.ResponseWriter, status int, name string, v view) {
	tmpl, ok := s.pages.byName[name]
	if !ok {
		s.log.Error("unknown template", map[string]interface{}{"name": name})
		writeError(w, http.StatusInternalServerError, "template_missing")
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "page", v); err != nil {
		s.log.Error("render failed", err, map[string]interface{}{"template": name})
		writeError(w, http.StatusInternalServerError, "render_failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// dashboardView fills the chrome shared by every dashboard screen.
func dashboardView(r *http.Request, title string) view {
	v := view{Title: title, Active: r.URL.Path}
	if store := storeFromRequest(r); store != nil {
		if user := store.CurrentUser(); user != nil {
			v.User = user
			v.Nav = navByRole[user.Role]
		}
	}
	return v
}
