package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/guard"
	"semaphore/dashboard/internal/session"
)

const qrSize = 256

func currentUser(r *http.Request) *session.User {
	if store := storeFromRequest(r); store != nil {
		return store.CurrentUser()
	}
	return nil
}

// teachingData loads the teacher's sections with their course names.
func (s *Server) teachingData(ctx context.Context, client *api.Client, teacherID string) ([]sectionRow, error) {
	var (
		sections []api.CourseSection
		courses  []api.Course
	)
	err := api.FanOut(ctx,
		func(ctx context.Context) (err error) {
			sections, err = client.SectionsByTeacher(ctx, teacherID)
			return err
		},
		func(ctx context.Context) (err error) {
			courses, err = client.ListCourses(ctx)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return sectionRows(sections, courses), nil
}

func findSection(rows []sectionRow, id string) *sectionRow {
	for i := range rows {
		if rows[i].ID == id {
			return &rows[i]
		}
	}
	return nil
}

// Mis Cursos

func (s *Server) handleMyCourses(w http.ResponseWriter, r *http.Request) {
	v := dashboardView(r, "Mis Cursos")
	user := currentUser(r)
	if user == nil {
		http.Redirect(w, r, guard.PublicEntry, http.StatusSeeOther)
		return
	}
	client := s.client(r)

	var (
		sections  []api.CourseSection
		courses   []api.Course
		faculties []api.Faculty
	)
	err := api.FanOut(r.Context(),
		func(ctx context.Context) (err error) {
			sections, err = client.SectionsByTeacher(ctx, user.ID)
			return err
		},
		func(ctx context.Context) (err error) {
			courses, err = client.ListCourses(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			faculties, err = client.ListFaculties(ctx)
			return err
		},
	)
	if sessionExpired(w, r, err) {
		return
	}
	if err != nil {
		v.Error = "Error al cargar datos: " + errorMessage(err, "no se pudo contactar al servidor")
	}
	v.Data = teacherCourses(sections, courses, faculties)
	s.render(w, http.StatusOK, "my_courses", v)
}

// Estudiantes

type myStudentsData struct {
	Sections []sectionRow
	Selected *sectionRow
	Students []api.Student
	QRCodes  []api.QRCode
	ShowQR   bool
}

func (s *Server) handleMyStudents(w http.ResponseWriter, r *http.Request) {
	v := dashboardView(r, "Estudiantes")
	user := currentUser(r)
	if user == nil {
		http.Redirect(w, r, guard.PublicEntry, http.StatusSeeOther)
		return
	}
	client := s.client(r)

	rows, err := s.teachingData(r.Context(), client, user.ID)
	if sessionExpired(w, r, err) {
		return
	}
	data := myStudentsData{Sections: rows}
	if err != nil {
		v.Error = "No se pudieron cargar los datos."
		v.Data = data
		s.render(w, http.StatusOK, "my_students", v)
		return
	}

	query := r.URL.Query()
	if selected := findSection(rows, query.Get("seccion")); selected != nil {
		data.Selected = selected
		data.ShowQR = query.Get("qr") != ""
		err := api.FanOut(r.Context(),
			func(ctx context.Context) (err error) {
				data.Students, err = client.StudentsBySection(ctx, selected.ID)
				return err
			},
			func(ctx context.Context) error {
				codes, err := client.QRCodesBySection(ctx, selected.ID)
				if errors.Is(err, api.ErrSessionExpired) {
					return err
				}
				if err != nil {
					s.log.Debug("qr codes unavailable", err)
					return nil
				}
				data.QRCodes = codes
				return nil
			},
		)
		if sessionExpired(w, r, err) {
			return
		}
		if err != nil {
			data.Students = nil
			s.log.Warn("students by section failed", err)
		}
	}
	v.Data = data
	s.render(w, http.StatusOK, "my_students", v)
}

// handleSectionQR renders the section id as a PNG QR code. Only sections
// taught by the current teacher are served.
func (s *Server) handleSectionQR(w http.ResponseWriter, r *http.Request) {
	sectionID := chi.URLParam(r, "sectionId")
	user := currentUser(r)
	if user == nil {
		http.Redirect(w, r, guard.PublicEntry, http.StatusSeeOther)
		return
	}
	sections, err := s.client(r).SectionsByTeacher(r.Context(), user.ID)
	if sessionExpired(w, r, err) {
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "sections_unavailable")
		return
	}
	owned := false
	for _, section := range sections {
		if section.ID == sectionID {
			owned = true
			break
		}
	}
	if !owned {
		writeError(w, http.StatusNotFound, "section_not_found")
		return
	}

	png, err := qrcode.Encode(sectionID, qrcode.Medium, qrSize)
	if err != nil {
		s.log.Error("qr encode failed", err)
		writeError(w, http.StatusInternalServerError, "qr_failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Asistencia

type attendanceRow struct {
	api.Attendance
	StudentName string
}

type attendanceData struct {
	Sections  []sectionRow
	Selected  *sectionRow
	Schedules []api.Schedule
	Schedule  string
	Records   []attendanceRow
}

func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	v := dashboardView(r, "Asistencia")
	user := currentUser(r)
	if user == nil {
		http.Redirect(w, r, guard.PublicEntry, http.StatusSeeOther)
		return
	}
	client := s.client(r)

	rows, err := s.teachingData(r.Context(), client, user.ID)
	if sessionExpired(w, r, err) {
		return
	}
	data := attendanceData{Sections: rows}
	if err != nil {
		v.Error = "No se pudieron cargar los datos."
		v.Data = data
		s.render(w, http.StatusOK, "attendance", v)
		return
	}

	query := r.URL.Query()
	data.Selected = findSection(rows, query.Get("seccion"))
	if data.Selected == nil {
		v.Data = data
		s.render(w, http.StatusOK, "attendance", v)
		return
	}

	schedules, err := client.SchedulesBySection(r.Context(), data.Selected.ID)
	if sessionExpired(w, r, err) {
		return
	}
	if err != nil {
		v.Error = errorMessage(err, "Error al obtener los horarios de la sección")
	}
	data.Schedules = schedules

	scheduleID := query.Get("horario")
	for _, schedule := range schedules {
		if schedule.ID != scheduleID {
			continue
		}
		data.Schedule = scheduleID
		records, err := s.attendanceRecords(r.Context(), client, data.Selected.ID, scheduleID)
		if sessionExpired(w, r, err) {
			return
		}
		if err != nil {
			v.Error = errorMessage(err, "Error al obtener la asistencia")
		}
		data.Records = records
		break
	}

	v.Data = data
	s.render(w, http.StatusOK, "attendance", v)
}

func (s *Server) attendanceRecords(ctx context.Context, client *api.Client, sectionID, scheduleID string) ([]attendanceRow, error) {
	var (
		records  []api.Attendance
		students []api.Student
	)
	err := api.FanOut(ctx,
		func(ctx context.Context) (err error) {
			records, err = client.AttendanceBySchedule(ctx, scheduleID)
			return err
		},
		func(ctx context.Context) error {
			list, err := client.StudentsBySection(ctx, sectionID)
			if errors.Is(err, api.ErrSessionExpired) {
				return err
			}
			if err != nil {
				s.log.Debug("student names unavailable", err)
				return nil
			}
			students = list
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(students))
	for _, st := range students {
		names[st.ID] = st.FullName()
	}
	rows := make([]attendanceRow, 0, len(records))
	for _, rec := range records {
		name, ok := names[rec.StudentID]
		if !ok {
			name = rec.StudentID
		}
		rows = append(rows, attendanceRow{Attendance: rec, StudentName: name})
	}
	return rows, nil
}
