package api

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var result LoginResult
	body := map[string]string{"email": email, "password": password}
	err := c.call(ctx, http.MethodPost, "/auth/login", body, &result, "Usuario o contraseña incorrectos", anonymous())
	return result, err
}

// Logout revokes the refresh token on the backend.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}
	return c.call(ctx, http.MethodPost, "/auth/logout", body, nil, "Error al cerrar sesión")
}

// Universities

func (c *Client) ListUniversities(ctx context.Context) ([]University, error) {
	var out []University
	err := c.call(ctx, http.MethodGet, "/admin/universities", nil, &out, "Error al obtener universidades")
	return out, err
}

func (c *Client) CreateUniversity(ctx context.Context, in UniversityInput) (University, error) {
	var out University
	err := c.call(ctx, http.MethodPost, "/admin/universities", in, &out, "Error al crear universidad")
	return out, err
}

func (c *Client) UpdateUniversity(ctx context.Context, id string, in UniversityInput) (University, error) {
	var out University
	err := c.call(ctx, http.MethodPut, "/admin/universities/"+url.PathEscape(id), in, &out, "Error al actualizar universidad")
	return out, err
}

func (c *Client) DeleteUniversity(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/admin/universities/"+url.PathEscape(id), nil, nil, "Error al eliminar universidad")
}

// Faculties

func (c *Client) ListFaculties(ctx context.Context) ([]Faculty, error) {
	var out []Faculty
	err := c.call(ctx, http.MethodGet, "/faculties", nil, &out, "Error al obtener facultades")
	return out, err
}

func (c *Client) CreateFaculty(ctx context.Context, in FacultyInput) (Faculty, error) {
	var out Faculty
	err := c.call(ctx, http.MethodPost, "/admin/faculties", in, &out, "Error al crear facultad")
	return out, err
}

func (c *Client) UpdateFaculty(ctx context.Context, id string, in FacultyInput) (Faculty, error) {
	var out Faculty
	err := c.call(ctx, http.MethodPut, "/admin/faculties/"+url.PathEscape(id), in, &out, "Error al actualizar facultad")
	return out, err
}

func (c *Client) DeleteFaculty(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/admin/faculties/"+url.PathEscape(id), nil, nil, "Error al eliminar facultad")
}

// Courses

func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	var out []Course
	err := c.call(ctx, http.MethodGet, "/courses", nil, &out, "Error al obtener cursos")
	return out, err
}

func (c *Client) CreateCourse(ctx context.Context, in CourseInput) (Course, error) {
	var out Course
	err := c.call(ctx, http.MethodPost, "/courses", in, &out, "Error al crear curso")
	return out, err
}

func (c *Client) UpdateCourse(ctx context.Context, id string, in CourseInput) (Course, error) {
	var out Course
	err := c.call(ctx, http.MethodPut, "/courses/"+url.PathEscape(id), in, &out, "Error al actualizar curso")
	return out, err
}

func (c *Client) DeleteCourse(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/courses/"+url.PathEscape(id), nil, nil, "Error al eliminar curso")
}

// Sections and teaching data

func (c *Client) SectionsByTeacher(ctx context.Context, teacherID string) ([]CourseSection, error) {
	var out []CourseSection
	err := c.call(ctx, http.MethodGet, "/courses/teacher/"+url.PathEscape(teacherID)+"/sections", nil, &out, "Error al obtener las secciones del profesor")
	return out, err
}

func (c *Client) StudentsBySection(ctx context.Context, sectionID string) ([]Student, error) {
	var out []Student
	err := c.call(ctx, http.MethodGet, "/courses/sections/"+url.PathEscape(sectionID)+"/students", nil, &out, "Error al obtener los estudiantes de la sección")
	return out, err
}

func (c *Client) SchedulesBySection(ctx context.Context, sectionID string) ([]Schedule, error) {
	var out []Schedule
	err := c.call(ctx, http.MethodGet, "/sections/"+url.PathEscape(sectionID)+"/schedules", nil, &out, "Error al obtener los horarios de la sección")
	return out, err
}

func (c *Client) AttendanceBySchedule(ctx context.Context, scheduleID string) ([]Attendance, error) {
	var out []Attendance
	err := c.call(ctx, http.MethodGet, "/attendance/class-schedule/"+url.PathEscape(scheduleID), nil, &out, "Error al obtener la asistencia")
	return out, err
}

func (c *Client) QRCodesBySection(ctx context.Context, sectionID string) ([]QRCode, error) {
	var out []QRCode
	err := c.call(ctx, http.MethodGet, "/qrcodes/course-section/"+url.PathEscape(sectionID), nil, &out, "Error al obtener el QR de la sección")
	return out, err
}

// Users

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := c.call(ctx, http.MethodGet, "/admin/users", nil, &out, "Error al obtener usuarios")
	return out, err
}

func (c *Client) CreateUser(ctx context.Context, in UserInput) (User, error) {
	var out User
	err := c.call(ctx, http.MethodPost, "/admin/users", in, &out, "Error al crear usuario")
	return out, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, in UserInput) (User, error) {
	in.Password = ""
	var out User
	err := c.call(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(id), in, &out, "Error al actualizar usuario")
	return out, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil, "Error al eliminar usuario")
}
