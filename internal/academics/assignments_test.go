package academics

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ulms/ulms-gateway/internal/shared"
)

func submissionFixture() map[string]any {
	return map[string]any{
		"id": "s1",
		"analysisResult": map[string]any{
			"plagiarismCheck": `{"score":0.1}`,
			"grading":         `{"grade":"A"}`,
		},
		"submittedAt": ts(0),
	}
}

func TestGetAssignmentParsesAnalysis(t *testing.T) {
	f := newFixture(t, shared.PermAssignmentRead)
	f.reply("/assignment.AssignmentService/GetAssignmentById", map[string]any{
		"id":          "a1",
		"submissions": []any{submissionFixture(), map[string]any{"id": "s2"}},
	})

	rec := f.do(http.MethodGet, "/assignments/findOne/a1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"id": "a1",
		"submissions": [
			{"id":"s1","analysisResult":{"plagiarismCheck":{"score":0.1},"grading":{"grade":"A"}},"submittedAt":"1970-01-01T00:00:00.000Z"},
			{"id":"s2","analysisResult":null}
		]
	}`, rec.Body.String())
}

func TestAssignmentsGroupAcceptsAnyAssignmentBit(t *testing.T) {
	for _, mask := range []shared.PermissionMask{shared.PermAssignmentRead, shared.PermAssignmentSubmit, shared.PermAssignmentWrite} {
		f := newFixture(t, mask)
		f.reply("/assignment.AssignmentService/GetCourseAssignments", map[string]any{})
		rec := f.do(http.MethodGet, "/assignments/course/c1", "")
		assert.Equal(t, http.StatusOK, rec.Code, mask)
		assert.JSONEq(t, `null`, rec.Body.String())
	}

	f := newFixture(t, shared.PermCourseRead)
	rec := f.do(http.MethodGet, "/assignments/course/c1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.srv.Calls())
}

func TestCreateAssignmentOverridesGroup(t *testing.T) {
	f := newFixture(t, shared.PermAssignmentRead)
	rec := f.do(http.MethodPost, "/assignments/create", `{"title":"HW1","courseId":"c1"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStudentAssignmentsUsePrincipal(t *testing.T) {
	f := newFixture(t, shared.PermAssignmentSubmit)
	f.reply("/assignment.AssignmentService/GetStudentAssignments", map[string]any{
		"assignments": []any{map[string]any{"id": "a1", "submissions": []any{submissionFixture()}}},
	})

	rec := f.do(http.MethodGet, "/assignments/student", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"studentId": "u-1"}, lastBody(t, f))

	var out struct {
		Assignments []struct {
			Submissions []struct {
				AnalysisResult struct {
					Grading map[string]any `json:"grading"`
				} `json:"analysisResult"`
			} `json:"submissions"`
		} `json:"assignments"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "A", out.Assignments[0].Submissions[0].AnalysisResult.Grading["grade"])
}

func TestSubmitAssignmentSendsPrincipalAsStudent(t *testing.T) {
	f := newFixture(t, shared.PermAssignmentSubmit)
	f.reply("/assignment.AssignmentService/SubmitAssignment", map[string]any{"id": "s3", "submittedAt": ts(60)})

	rec := f.do(http.MethodPost, "/assignments/submit/a1/student", `{"content":"my essay"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"s3","submittedAt":"1970-01-01T00:01:00.000Z"}`, rec.Body.String())
	assert.Equal(t, map[string]any{"assignmentId": "a1", "studentId": "u-1", "content": "my essay"}, lastBody(t, f))
}

func TestAssignmentBackendErrorsAreClassified(t *testing.T) {
	f := newFixture(t, shared.PermAssignmentRead)
	f.srv.Handle("/assignment.AssignmentService/GetAssignmentSubmissions", func(context.Context, json.RawMessage) (any, error) {
		return nil, status.Error(codes.NotFound, "no such assignment")
	})
	rec := f.do(http.MethodGet, "/assignments/a9/submissions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
