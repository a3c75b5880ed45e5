package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/session"
)

var notices = map[string]string{
	"created": "Registro creado correctamente",
	"updated": "Registro actualizado correctamente",
	"deleted": "Registro eliminado correctamente",
}

// screen is a list page that also hosts its create/update/delete forms.
type screen struct {
	path   string
	title  string
	render func(w http.ResponseWriter, r *http.Request, status int, v view)
}

// submit validates form, runs call and goes back to the list. On failure the
// list is rendered again with the error inline.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, sc screen, form interface{}, fields map[string]string, call func(ctx context.Context) error, notice, fallback string) {
	v := dashboardView(r, sc.title)
	if form != nil {
		for field, msg := range s.validateForm(form) {
			if fields == nil {
				fields = map[string]string{}
			}
			if _, ok := fields[field]; !ok {
				fields[field] = msg
			}
		}
	}
	if len(fields) > 0 {
		v.Fields = fields
		v.Error = "Revisa los campos del formulario"
		sc.render(w, r, http.StatusUnprocessableEntity, v)
		return
	}

	if err := call(r.Context()); err != nil {
		if sessionExpired(w, r, err) {
			return
		}
		s.log.Warn("backend rejected change", err, map[string]interface{}{"path": r.URL.Path})
		v.Error = errorMessage(err, fallback)
		sc.render(w, r, failureStatus(err), v)
		return
	}
	http.Redirect(w, r, sc.path+"?ok="+notice, http.StatusSeeOther)
}

func failureStatus(err error) int {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func formFloat(r *http.Request, key string, fields map[string]string) float64 {
	raw := formValue(r, key)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		fields[key] = key + " must be a number"
	}
	return value
}

func noticeFrom(r *http.Request) string {
	return notices[r.URL.Query().Get("ok")]
}

// Universities

type universitiesData struct {
	Universities []api.University
	Query        string
}

func (s *Server) universitiesScreen() screen {
	return screen{path: "/dashboard/universidades", title: "Universidades", render: s.renderUniversities}
}

func (s *Server) handleUniversities(w http.ResponseWriter, r *http.Request) {
	v := dashboardView(r, "Universidades")
	v.Notice = noticeFrom(r)
	s.renderUniversities(w, r, http.StatusOK, v)
}

func (s *Server) renderUniversities(w http.ResponseWriter, r *http.Request, status int, v view) {
	list, err := s.client(r).ListUniversities(r.Context())
	if sessionExpired(w, r, err) {
		return
	}
	if err != nil && v.Error == "" {
		v.Error = errorMessage(err, "Error al obtener universidades")
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	v.Data = universitiesData{Universities: filterUniversities(list, q), Query: q}
	s.render(w, status, "universities", v)
}

func (s *Server) handleCreateUniversity(w http.ResponseWriter, r *http.Request) {
	in := api.UniversityInput{Name: formValue(r, "name")}
	s.submit(w, r, s.universitiesScreen(), in, nil, func(ctx context.Context) error {
		_, err := s.client(r).CreateUniversity(ctx, in)
		return err
	}, "created", "Error al crear universidad")
}

func (s *Server) handleUpdateUniversity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in := api.UniversityInput{Name: formValue(r, "name")}
	s.submit(w, r, s.universitiesScreen(), in, nil, func(ctx context.Context) error {
		_, err := s.client(r).UpdateUniversity(ctx, id, in)
		return err
	}, "updated", "Error al actualizar universidad")
}

func (s *Server) handleDeleteUniversity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.submit(w, r, s.universitiesScreen(), nil, nil, func(ctx context.Context) error {
		return s.client(r).DeleteUniversity(ctx, id)
	}, "deleted", "Error al eliminar universidad")
}

// Faculties

type facultiesData struct {
	Faculties    []facultyRow
	Universities []api.University
	Query        string
	University   string
}

func (s *Server) facultiesScreen() screen {
	return screen{path: "/dashboard/facultades", title: "Facultades", render: s.renderFaculties}
}

func (s *Server) handleFaculties(w http.ResponseWriter, r *http.Request) {
	v := dashboardView(r, "Facultades")
	v.Notice = noticeFrom(r)
	s.renderFaculties(w, r, http.StatusOK, v)
}

func (s *Server) renderFaculties(w http.ResponseWriter, r *http.Request, status int, v view) {
	client := s.client(r)
	var (
		faculties    []api.Faculty
		universities []api.University
	)
	err := api.FanOut(r.Context(),
		func(ctx context.Context) (err error) {
			faculties, err = client.ListFaculties(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			universities, err = client.ListUniversities(ctx)
			return err
		},
	)
	if sessionExpired(w, r, err) {
		return
	}
	if err != nil && v.Error == "" {
		v.Error = errorMessage(err, "Error al obtener facultades")
	}
	query := r.URL.Query()
	data := facultiesData{
		Universities: universities,
		Query:        strings.TrimSpace(query.Get("q")),
		University:   query.Get("universidad"),
	}
	data.Faculties = facultyRows(faculties, universities, data.Query, data.University)
	v.Data = data
	s.render(w, status, "faculties", v)
}

func facultyInput(r *http.Request, fields map[string]string) api.FacultyInput {
	return api.FacultyInput{
		UniversityID: formValue(r, "universityId"),
		Name:         formValue(r, "name"),
		LocationLat:  formFloat(r, "locationLat", fields),
		LocationLng:  formFloat(r, "locationLng", fields),
	}
}

func (s *Server) handleCreateFaculty(w http.ResponseWriter, r *http.Request) {
	fields := map[string]string{}
	in := facultyInput(r, fields)
	s.submit(w, r, s.facultiesScreen(), in, fields, func(ctx context.Context) error {
		_, err := s.client(r).CreateFaculty(ctx, in)
		return err
	}, "created", "Error al crear facultad")
}

func (s *Server) handleUpdateFaculty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields := map[string]string{}
	in := facultyInput(r, fields)
	s.submit(w, r, s.facultiesScreen(), in, fields, func(ctx context.Context) error {
		_, err := s.client(r).UpdateFaculty(ctx, id, in)
		return err
	}, "updated", "Error al actualizar facultad")
}

func (s *Server) handleDeleteFaculty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.submit(w, r, s.facultiesScreen(), nil, nil, func(ctx context.Context) error {
		return s.client(r).DeleteFaculty(ctx, id)
	}, "deleted", "Error al eliminar facultad")
}

// Users

type usersData struct {
	Users []api.User
	Roles []session.Role
	Query string
	Role  string
}

var allRoles = []session.Role{session.RoleAdmin, session.RoleTeacher, session.RoleStudent}

func (s *Server) usersScreen() screen {
	return screen{path: "/dashboard/usuarios", title: "Usuarios", render: s.renderUsers}
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	v := dashboardView(r, "Usuarios")
	v.Notice = noticeFrom(r)
	s.renderUsers(w, r, http.StatusOK, v)
}

func (s *Server) renderUsers(w http.ResponseWriter, r *http.Request, status int, v view) {
	list, err := s.client(r).ListUsers(r.Context())
	if sessionExpired(w, r, err) {
		return
	}
	if err != nil && v.Error == "" {
		v.Error = errorMessage(err, "Error al obtener usuarios")
	}
	query := r.URL.Query()
	data := usersData{Roles: allRoles, Query: strings.TrimSpace(query.Get("q")), Role: query.Get("rol")}
	data.Users = filterUsers(list, data.Query, session.Role(data.Role))
	v.Data = data
	s.render(w, status, "users", v)
}

func userInput(r *http.Request) api.UserInput {
	return api.UserInput{
		Email:     formValue(r, "email"),
		Password:  r.PostFormValue("password"),
		FirstName: formValue(r, "firstName"),
		LastName:  formValue(r, "lastName"),
		Role:      session.Role(formValue(r, "role")),
	}
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	in := userInput(r)
	var fields map[string]string
	if in.Password == "" {
		fields = map[string]string{"password": "password is a required field"}
	}
	s.submit(w, r, s.usersScreen(), in, fields, func(ctx context.Context) error {
		_, err := s.client(r).CreateUser(ctx, in)
		return err
	}, "created", "Error al crear usuario")
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in := userInput(r)
	in.Password = ""
	s.submit(w, r, s.usersScreen(), in, nil, func(ctx context.Context) error {
		_, err := s.client(r).UpdateUser(ctx, id, in)
		return err
	}, "updated", "Error al actualizar usuario")
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.submit(w, r, s.usersScreen(), nil, nil, func(ctx context.Context) error {
		return s.client(r).DeleteUser(ctx, id)
	}, "deleted", "Error al eliminar usuario")
}

// Courses

type coursesData struct {
	Courses   []courseRow
	Faculties []api.Faculty
	Teachers  []api.User
	Query     string
	Faculty   string
}

func (s *Server) coursesScreen() screen {
	return screen{path: "/dashboard/cursos", title: "Cursos", render: s.renderCourses}
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	v := dashboardView(r, "Cursos")
	v.Notice = noticeFrom(r)
	s.renderCourses(w, r, http.StatusOK, v)
}

func (s *Server) renderCourses(w http.ResponseWriter, r *http.Request, status int, v view) {
	client := s.client(r)
	var (
		courses   []api.Course
		faculties []api.Faculty
		users     []api.User
	)
	err := api.FanOut(r.Context(),
		func(ctx context.Context) (err error) {
			courses, err = client.ListCourses(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			faculties, err = client.ListFaculties(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			users, err = client.ListUsers(ctx)
			return err
		},
	)
	if sessionExpired(w, r, err) {
		return
	}
	if err != nil && v.Error == "" {
		v.Error = errorMessage(err, "Error al obtener cursos")
	}
	query := r.URL.Query()
	data := coursesData{
		Faculties: faculties,
		Teachers:  teachersOf(users),
		Query:     strings.TrimSpace(query.Get("q")),
		Faculty:   query.Get("facultad"),
	}
	data.Courses = courseRows(courses, faculties, data.Teachers, data.Query, data.Faculty)
	v.Data = data
	s.render(w, status, "courses", v)
}

func courseInput(r *http.Request) api.CourseInput {
	return api.CourseInput{
		Name:        formValue(r, "name"),
		Description: formValue(r, "description"),
		TeacherID:   formValue(r, "teacherId"),
		FacultyID:   formValue(r, "facultyId"),
		Semester:    formValue(r, "semester"),
	}
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	in := courseInput(r)
	s.submit(w, r, s.coursesScreen(), in, nil, func(ctx context.Context) error {
		_, err := s.client(r).CreateCourse(ctx, in)
		return err
	}, "created", "Error al crear curso")
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in := courseInput(r)
	s.submit(w, r, s.coursesScreen(), in, nil, func(ctx context.Context) error {
		_, err := s.client(r).UpdateCourse(ctx, id, in)
		return err
	}, "updated", "Error al actualizar curso")
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.submit(w, r, s.coursesScreen(), nil, nil, func(ctx context.Context) error {
		return s.client(r).DeleteCourse(ctx, id)
	}, "deleted", "Error al eliminar curso")
}
