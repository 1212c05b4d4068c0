package academics

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ulms/ulms-gateway/internal/shared"
)

func TestListCoursesRestoresDates(t *testing.T) {
	f := newFixture(t, 0)
	f.reply("/course.CourseService/GetAllCourses", map[string]any{
		"courses": []any{map[string]any{"id": "c1", "createdAt": ts(1_700_000_000)}},
	})

	rec := f.do(http.MethodGet, "/courses", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"c1","createdAt":"2023-11-14T22:13:20.000Z"}]`, rec.Body.String())
}

func TestListCoursesEmpty(t *testing.T) {
	f := newFixture(t, 0)
	f.reply("/course.CourseService/GetAllCourses", map[string]any{})
	assert.JSONEq(t, `[]`, f.do(http.MethodGet, "/courses", "").Body.String())

	f.reply("/course.CourseService/GetOffersForStudent", map[string]any{"offers": []any{}})
	assert.JSONEq(t, `[]`, f.do(http.MethodGet, "/courses/enrollments/s1", "").Body.String())
	assert.Equal(t, map[string]any{"studentId": "s1"}, lastBody(t, f))
}

func TestGetCourseMissingIsNull(t *testing.T) {
	f := newFixture(t, 0)
	f.reply("/course.CourseService/GetCourseById", map[string]any{})
	rec := f.do(http.MethodGet, "/courses/c9", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `null`, rec.Body.String())
	assert.Equal(t, map[string]any{"id": "c9"}, lastBody(t, f))
}

func TestCreateCourseNeedsCourseWrite(t *testing.T) {
	body := `{"title":"Algebra","code":"MATH1","instructorId":"i1"}`

	denied := newFixture(t, shared.PermCourseRead)
	rec := denied.do(http.MethodPost, "/courses/create", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, denied.srv.Calls())

	allowed := newFixture(t, shared.PermCourseRead|shared.PermCourseWrite)
	allowed.reply("/course.CourseService/CreateCourse", map[string]any{"id": "c2", "title": "Algebra"})
	rec = allowed.do(http.MethodPost, "/courses/create", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "MATH1", lastBody(t, allowed)["code"])
}

func TestEnrollValidatesBody(t *testing.T) {
	f := newFixture(t, shared.PermCourseWrite)
	rec := f.do(http.MethodPost, "/courses/enroll", `{"courseId":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.srv.Calls())
}
