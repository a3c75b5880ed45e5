package http

import (
	"strings"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/session"
)

const (
	unknownFaculty    = "Facultad no encontrada"
	unknownUniversity = "Universidad no encontrada"
	unknownCourse     = "Curso Desconocido"
	unassignedTeacher = "Profesor no asignado"
)

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func filterUniversities(list []api.University, q string) []api.University {
	if q == "" {
		return list
	}
	out := make([]api.University, 0, len(list))
	for _, u := range list {
		if containsFold(u.Name, q) {
			out = append(out, u)
		}
	}
	return out
}

type facultyRow struct {
	api.Faculty
	UniversityName string
}

func facultyRows(faculties []api.Faculty, universities []api.University, q, universityID string) []facultyRow {
	names := make(map[string]string, len(universities))
	for _, u := range universities {
		names[u.ID] = u.Name
	}
	rows := make([]facultyRow, 0, len(faculties))
	for _, f := range faculties {
		if q != "" && !containsFold(f.Name, q) {
			continue
		}
		if universityID != "" && f.UniversityID != universityID {
			continue
		}
		name, ok := names[f.UniversityID]
		if !ok {
			name = unknownUniversity
		}
		rows = append(rows, facultyRow{Faculty: f, UniversityName: name})
	}
	return rows
}

func filterUsers(list []api.User, q string, role session.Role) []api.User {
	out := make([]api.User, 0, len(list))
	for _, u := range list {
		if q != "" && !containsFold(u.FirstName, q) && !containsFold(u.LastName, q) && !containsFold(u.Email, q) {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, u)
	}
	return out
}

func teachersOf(users []api.User) []api.User {
	return filterUsers(users, "", session.RoleTeacher)
}

type courseRow struct {
	api.Course
	FacultyName string
	TeacherName string
}

func facultyNames(faculties []api.Faculty) map[string]string {
	names := make(map[string]string, len(faculties))
	for _, f := range faculties {
		names[f.ID] = f.Name
	}
	return names
}

func courseRows(courses []api.Course, faculties []api.Faculty, teachers []api.User, q, facultyID string) []courseRow {
	faculty := facultyNames(faculties)
	teacher := make(map[string]string, len(teachers))
	for _, t := range teachers {
		teacher[t.ID] = t.FirstName + " " + t.LastName
	}
	rows := make([]courseRow, 0, len(courses))
	for _, c := range courses {
		if q != "" && !containsFold(c.Name, q) {
			continue
		}
		if facultyID != "" && c.FacultyID != facultyID {
			continue
		}
		row := courseRow{Course: c, FacultyName: unknownFaculty, TeacherName: unassignedTeacher}
		if name, ok := faculty[c.FacultyID]; ok {
			row.FacultyName = name
		}
		if name, ok := teacher[c.TeacherID]; ok {
			row.TeacherName = name
		}
		rows = append(rows, row)
	}
	return rows
}

// teacherCourses keeps the courses the teacher has at least one section in.
func teacherCourses(sections []api.CourseSection, courses []api.Course, faculties []api.Faculty) []courseRow {
	taught := make(map[string]bool, len(sections))
	for _, s := range sections {
		taught[s.CourseID] = true
	}
	faculty := facultyNames(faculties)
	rows := make([]courseRow, 0, len(taught))
	for _, c := range courses {
		if !taught[c.ID] {
			continue
		}
		row := courseRow{Course: c, FacultyName: unknownFaculty}
		if name, ok := faculty[c.FacultyID]; ok {
			row.FacultyName = name
		}
		rows = append(rows, row)
	}
	return rows
}

type sectionRow struct {
	api.CourseSection
	CourseName string
}

func sectionRows(sections []api.CourseSection, courses []api.Course) []sectionRow {
	names := make(map[string]string, len(courses))
	for _, c := range courses {
		names[c.ID] = c.Name
	}
	rows := make([]sectionRow, 0, len(sections))
	for _, s := range sections {
		name, ok := names[s.CourseID]
		if !ok || name == "" {
			name = unknownCourse
		}
		rows = append(rows, sectionRow{CourseSection: s, CourseName: name})
	}
	return rows
}
