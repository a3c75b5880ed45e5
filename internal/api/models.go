package api

import "semaphore/dashboard/internal/session"

type University struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type UniversityInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

type Faculty struct {
	ID           string  `json:"id"`
	UniversityID string  `json:"universityId"`
	Name         string  `json:"name"`
	LocationLat  float64 `json:"locationLat"`
	LocationLng  float64 `json:"locationLng"`
	CreatedAt    string  `json:"createdAt,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

type FacultyInput struct {
	UniversityID string  `json:"universityId" validate:"required"`
	Name         string  `json:"name" validate:"required,max=120"`
	LocationLat  float64 `json:"locationLat" validate:"latitude"`
	LocationLng  float64 `json:"locationLng" validate:"longitude"`
}

type Course struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TeacherID   string `json:"teacherId,omitempty"`
	FacultyID   string `json:"facultyId"`
	Semester    string `json:"semester"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

type CourseInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description"`
	TeacherID   string `json:"teacherId" validate:"required"`
	FacultyID   string `json:"facultyId" validate:"required"`
	Semester    string `json:"semester" validate:"required"`
}

type CourseSection struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CourseID  string `json:"courseId"`
	TeacherID string `json:"teacherId"`
}

type Student struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s Student) FullName() string {
	return session.User{FirstName: s.FirstName, LastName: s.LastName}.FullName()
}

type Schedule struct {
	ID        string `json:"id"`
	SectionID string `json:"sectionId"`
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Classroom string `json:"classroom,omitempty"`
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	// Spelled as the backend sends it.
	AttendanceAbsent AttendanceStatus = "obsent"
)

var attendanceLabels = map[AttendanceStatus]string{
	AttendancePresent: "Presente",
	AttendanceLate:    "Tarde",
	AttendanceAbsent:  "Ausente",
}

func (s AttendanceStatus) Label() string {
	if label, ok := attendanceLabels[s]; ok {
		return label
	}
	return string(s)
}

type Attendance struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"studentId"`
	ScheduleID string           `json:"scheduleId"`
	Status     AttendanceStatus `json:"status"`
	Date       string           `json:"date"`
}

type QRCode struct {
	ID        string `json:"id"`
	SectionID string `json:"courseSectionId"`
	Code      string `json:"code"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

type User struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Role      session.Role `json:"role"`
	CreatedAt string       `json:"createdAt,omitempty"`
	UpdatedAt string       `json:"updatedAt,omitempty"`
}

func (u User) FullName() string {
	return session.User{FirstName: u.FirstName, LastName: u.LastName}.FullName()
}

// UserInput creates a user. Password is ignored on update.
type UserInput struct {
	Email     string       `json:"email" validate:"required,email"`
	Password  string       `json:"password,omitempty" validate:"omitempty,min=6"`
	FirstName string       `json:"firstName" validate:"required"`
	LastName  string       `json:"lastName" validate:"required"`
	Role      session.Role `json:"role" validate:"required,oneof=admin teacher student"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResult struct {
	User  session.User `json:"user"`
	Token Tokens       `json:"token"`
}
