package academics

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulms/ulms-gateway/internal/shared"
)

func TestCreateExamSendsWireTimestamps(t *testing.T) {
	f := newFixture(t, shared.PermExamWrite)
	f.reply("/exam.ExamService/CreateExam", map[string]any{"exam": map[string]any{
		"id":        "e1",
		"startTime": ts(1_700_000_000),
		"questions": []any{map[string]any{"id": "q1", "options": `["a","b"]`, "correctAnswer": "a"}},
	}})

	rec := f.do(http.MethodPost, "/exams/create", `{
		"title": "Midterm", "courseId": "c1", "duration": 60, "totalMarks": 100, "passingMarks": 50,
		"startTime": "2023-11-14T22:13:20.250Z", "endTime": "2023-11-14T23:13:20Z",
		"questions": [{"text": "pick one"}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"id": "e1",
		"startTime": "2023-11-14T22:13:20.000Z",
		"questions": [{"id":"q1","options":["a","b"],"correctAnswer":"a"}]
	}`, rec.Body.String())

	sent := lastBody(t, f)
	assert.Equal(t, map[string]any{"seconds": 1_700_000_000.0, "nanos": 250_000_000.0}, sent["startTime"])
	assert.Equal(t, map[string]any{"seconds": 1_700_003_600.0, "nanos": 0.0}, sent["endTime"])
	assert.Equal(t, []any{map[string]any{"text": "pick one"}}, sent["questions"])
}

func TestCreateExamRejectsInvertedWindow(t *testing.T) {
	f := newFixture(t, shared.PermExamWrite)
	rec := f.do(http.MethodPost, "/exams/create", `{"title":"x","courseId":"c1","startTime":"2024-01-02T00:00:00Z","endTime":"2024-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.srv.Calls())
}

func TestStartSessionForwardsClientMetadata(t *testing.T) {
	f := newFixture(t, 0)
	f.reply("/exam.ExamService/StartExamSession", map[string]any{
		"id":      "sess1",
		"exam":    map[string]any{"id": "e1", "questions": []any{}},
		"answers": []any{map[string]any{"id": "ans1", "structuredAnswer": `{"x":1}`}},
	})

	rec := f.do(http.MethodPost, "/exams/session/start", `{"examId":"e1","studentId":"s1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{
		"id": "sess1",
		"exam": {"id":"e1","questions":[]},
		"answers": [{"id":"ans1","structuredAnswer":{"x":1},"question":null}]
	}`, rec.Body.String())

	calls := f.srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"203.0.113.9"}, calls[0].Metadata.Get(MetadataIPAddress))
	assert.Equal(t, []string{"exam-client/1.0"}, calls[0].Metadata.Get(MetadataUserAgent))
}

func TestSubmitExamEncodesStructuredAnswers(t *testing.T) {
	f := newFixture(t, 0)
	f.reply("/exam.ExamService/SubmitExam", map[string]any{"sessionId": "sess1", "score": 7})

	rec := f.do(http.MethodPost, "/exams/submit", `{
		"sessionId": "sess1", "studentId": "s1",
		"answers": [
			{"questionId": "q1", "selectedOptions": ["a"]},
			{"questionId": "q2", "structuredAnswer": {"rows": [1, 2]}}
		]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	answers := lastBody(t, f)["answers"].([]any)
	assert.Equal(t, map[string]any{"questionId": "q1", "selectedOptions": []any{"a"}}, answers[0])
	assert.JSONEq(t, `{"rows":[1,2]}`, answers[1].(map[string]any)["structuredAnswer"].(string))
}

func TestGradeNeedsGradeOrWrite(t *testing.T) {
	body := `{"answerId":"ans1","instructorId":"i1","marksAwarded":5}`

	denied := newFixture(t, shared.PermExamTake)
	assert.Equal(t, http.StatusForbidden, denied.do(http.MethodPost, "/exams/grade", body).Code)

	f := newFixture(t, shared.PermExamGrade)
	f.reply("/exam.ExamService/GradeAnswer", map[string]any{"answer": map[string]any{
		"id":       "ans1",
		"question": map[string]any{"id": "q1", "options": "not json"},
	}})
	rec := f.do(http.MethodPost, "/exams/grade", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"ans1","structuredAnswer":null,"question":{"id":"q1","options":"not json","correctAnswer":null}}`, rec.Body.String())
}

func TestExamListsDefaultToEmpty(t *testing.T) {
	f := newFixture(t, 0)
	f.reply("/exam.ExamService/GetCourseExams", map[string]any{})
	f.reply("/exam.ExamService/GetStudentSessions", map[string]any{"sessions": []any{}})
	f.reply("/exam.ExamService/GetExamSubmissions", map[string]any{})
	f.reply("/exam.ExamService/GetExam", map[string]any{})

	assert.JSONEq(t, `[]`, f.do(http.MethodGet, "/exams/course/c1", "").Body.String())
	assert.JSONEq(t, `[]`, f.do(http.MethodGet, "/exams/sessions/student/s1", "").Body.String())
	assert.JSONEq(t, `[]`, f.do(http.MethodGet, "/exams/submissions/e1", "").Body.String())
	assert.JSONEq(t, `null`, f.do(http.MethodGet, "/exams/e1", "").Body.String())
}

func TestSeedExamsWithoutExams(t *testing.T) {
	f := newFixture(t, shared.PermExamWrite)
	f.reply("/exam.ExamService/SeedExams", map[string]any{"message": "already seeded"})
	rec := f.do(http.MethodPost, "/exams/seed", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"already seeded","exams":[]}`, rec.Body.String())
}
