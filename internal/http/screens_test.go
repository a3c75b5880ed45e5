package http

import (
	"testing"

	"semaphore/dashboard/internal/api"
	"semaphore/dashboard/internal/session"
)

func TestFacultyRowsFallbackAndFilters(t *testing.T) {
	universities := []api.University{{ID: "u1", Name: "Nacional"}}
	faculties := []api.Faculty{
		{ID: "f1", UniversityID: "u1", Name: "Ingeniería"},
		{ID: "f2", UniversityID: "gone", Name: "Medicina"},
	}

	rows := facultyRows(faculties, universities, "", "")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].UniversityName != "Nacional" || rows[1].UniversityName != unknownUniversity {
		t.Fatalf("unexpected university names: %+v", rows)
	}

	if rows := facultyRows(faculties, universities, "MEDI", ""); len(rows) != 1 || rows[0].ID != "f2" {
		t.Fatalf("expected case-insensitive search, got %+v", rows)
	}
	if rows := facultyRows(faculties, universities, "", "u1"); len(rows) != 1 || rows[0].ID != "f1" {
		t.Fatalf("expected university filter, got %+v", rows)
	}
}

func TestCourseRowsFallbacks(t *testing.T) {
	courses := []api.Course{
		{ID: "c1", Name: "Cálculo", FacultyID: "f1", TeacherID: "t1"},
		{ID: "c2", Name: "Física", FacultyID: "missing"},
	}
	faculties := []api.Faculty{{ID: "f1", Name: "Ciencias"}}
	teachers := []api.User{{ID: "t1", FirstName: "Ana", LastName: "Ríos", Role: session.RoleTeacher}}

	rows := courseRows(courses, faculties, teachers, "", "")
	if rows[0].FacultyName != "Ciencias" || rows[0].TeacherName != "Ana Ríos" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].FacultyName != unknownFaculty || rows[1].TeacherName != unassignedTeacher {
		t.Fatalf("expected fallbacks, got %+v", rows[1])
	}
	if rows := courseRows(courses, faculties, teachers, "", "f1"); len(rows) != 1 {
		t.Fatalf("expected faculty filter, got %d rows", len(rows))
	}
}

func TestFilterUsers(t *testing.T) {
	users := []api.User{
		{ID: "1", FirstName: "Ana", Email: "ana@uni.edu", Role: session.RoleAdmin},
		{ID: "2", FirstName: "Luis", Email: "luis@uni.edu", Role: session.RoleTeacher},
		{ID: "3", FirstName: "Eva", Email: "eva@uni.edu", Role: session.RoleStudent},
	}
	if got := filterUsers(users, "LUIS", ""); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected name search, got %+v", got)
	}
	if got := teachersOf(users); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected only teachers, got %+v", got)
	}
	if got := filterUsers(users, "", ""); len(got) != 3 {
		t.Fatalf("expected all users, got %d", len(got))
	}
}

func TestTeacherCoursesKeepsTaughtOnly(t *testing.T) {
	sections := []api.CourseSection{{ID: "s1", CourseID: "c1"}, {ID: "s2", CourseID: "c1"}}
	courses := []api.Course{{ID: "c1", Name: "Cálculo"}, {ID: "c2", Name: "Historia"}}

	rows := teacherCourses(sections, courses, nil)
	if len(rows) != 1 || rows[0].ID != "c1" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if rows[0].FacultyName != unknownFaculty {
		t.Fatalf("expected faculty fallback, got %q", rows[0].FacultyName)
	}
}

func TestSectionRowsUnknownCourse(t *testing.T) {
	rows := sectionRows(
		[]api.CourseSection{{ID: "s1", CourseID: "c1"}, {ID: "s2", CourseID: "c9"}},
		[]api.Course{{ID: "c1", Name: "Cálculo"}},
	)
	if rows[0].CourseName != "Cálculo" || rows[1].CourseName != unknownCourse {
		t.Fatalf("unexpected course names %+v", rows)
	}
	if findSection(rows, "s2") == nil || findSection(rows, "nope") != nil {
		t.Fatalf("findSection mismatch")
	}
}
