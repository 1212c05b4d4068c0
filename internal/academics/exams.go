package academics

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/metadata"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/platform/httpx"
	"github.com/ulms/ulms-gateway/internal/rbac"
	"github.com/ulms/ulms-gateway/internal/shared"
)

// Session metadata keys forwarded on StartExamSession.
const (
	MetadataIPAddress = "ipaddress"
	MetadataUserAgent = "useragent"
)

// ExamsHandler serves /exams.
type ExamsHandler struct {
	base
}

// NewExamsHandler constructs an ExamsHandler.
func NewExamsHandler(caller Caller, gate rbac.Gate, logger *slog.Logger) *ExamsHandler {
	return &ExamsHandler{base: newBase(caller, gate, nil, logger)}
}

// MountRoutes registers exam routes. Callers must already be authenticated.
func (h *ExamsHandler) MountRoutes(r chi.Router) {
	write := h.scope.Route(rbac.All(shared.PermExamWrite))
	r.With(write).Post("/seed", h.seed)
	r.With(write).Post("/create", h.create)
	r.Post("/session/start", h.startSession)
	r.Post("/submit", h.submit)
	r.With(h.scope.Route(rbac.Any(shared.PermExamGrade, shared.PermExamWrite))).Post("/grade", h.grade)
	r.Get("/course/{courseId}", h.courseExams)
	r.Get("/session/{examId}/student/{studentId}", h.studentSession)
	r.Get("/sessions/student/{studentId}", h.studentSessions)
	r.Get("/submissions/{examId}", h.submissions)
	r.Get("/{examId}", h.get)
}

type createExamRequest struct {
	Title        string          `json:"title" validate:"required"`
	Description  string          `json:"description,omitempty"`
	CourseID     string          `json:"courseId" validate:"required"`
	Duration     int             `json:"duration" validate:"gte=0"`
	TotalMarks   int             `json:"totalMarks" validate:"gte=0"`
	PassingMarks int             `json:"passingMarks" validate:"gte=0"`
	StartTime    time.Time       `json:"startTime" validate:"required"`
	EndTime      time.Time       `json:"endTime" validate:"required,gtfield=StartTime"`
	Questions    json.RawMessage `json:"questions"`
}

type createExamWire struct {
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	CourseID     string            `json:"courseId"`
	Duration     int               `json:"duration"`
	TotalMarks   int               `json:"totalMarks"`
	PassingMarks int               `json:"passingMarks"`
	StartTime    backend.Timestamp `json:"startTime"`
	EndTime      backend.Timestamp `json:"endTime"`
	Questions    json.RawMessage   `json:"questions,omitempty"`
}

type startSessionRequest struct {
	ExamID    string `json:"examId" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
}

type examAnswer struct {
	QuestionID       string   `json:"questionId" validate:"required"`
	SelectedOptions  []string `json:"selectedOptions,omitempty"`
	TextAnswer       string   `json:"textAnswer,omitempty"`
	StructuredAnswer any      `json:"structuredAnswer,omitempty"`
}

type submitExamRequest struct {
	SessionID string       `json:"sessionId" validate:"required"`
	StudentID string       `json:"studentId" validate:"required"`
	Answers   []examAnswer `json:"answers" validate:"dive"`
}

type gradeRequest struct {
	AnswerID     string  `json:"answerId" validate:"required"`
	InstructorID string  `json:"instructorId" validate:"required"`
	IsCorrect    *bool   `json:"isCorrect,omitempty"`
	MarksAwarded float64 `json:"marksAwarded" validate:"gte=0"`
	Feedback     string  `json:"feedback,omitempty"`
}

func (h *ExamsHandler) seed(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Exams, "SeedExams", struct{}{})
	if err != nil {
		h.fail(w, "seed exams", err)
		return
	}
	exams := []any{}
	if items := backend.Items(resp, "exams"); items != nil {
		exams = backend.MapItems(backend.RestoreDates(items).([]any), parseExam)
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"message": resp["message"], "exams": exams})
}

func (h *ExamsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createExamRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.backend.Call(r.Context(), backend.Exams, "CreateExam", createExamWire{
		Title:        req.Title,
		Description:  req.Description,
		CourseID:     req.CourseID,
		Duration:     req.Duration,
		TotalMarks:   req.TotalMarks,
		PassingMarks: req.PassingMarks,
		StartTime:    backend.NewTimestamp(req.StartTime),
		EndTime:      backend.NewTimestamp(req.EndTime),
		Questions:    req.Questions,
	})
	if err != nil {
		h.fail(w, "create exam", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, parseExamValue(resp["exam"]))
}

func (h *ExamsHandler) get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Exams, "GetExam", map[string]string{"examId": chi.URLParam(r, "examId")})
	if err != nil {
		h.fail(w, "get exam", err)
		return
	}
	if len(resp) == 0 {
		httpx.JSON(w, http.StatusOK, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, parseExamValue(resp))
}

func (h *ExamsHandler) courseExams(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Exams, "GetCourseExams", map[string]string{"courseId": chi.URLParam(r, "courseId")})
	if err != nil {
		h.fail(w, "course exams", err)
		return
	}
	httpx.JSON(w, http.StatusOK, restoredList(resp, "exams", []any{}))
}

func (h *ExamsHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx := metadata.AppendToOutgoingContext(r.Context(), MetadataIPAddress, clientIP(r), MetadataUserAgent, r.UserAgent())
	resp, err := h.backend.Call(ctx, backend.Exams, "StartExamSession", req)
	if err != nil {
		h.fail(w, "start exam session", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, parseSessionValue(resp))
}

func (h *ExamsHandler) studentSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Exams, "GetStudentExamSession", map[string]string{
		"examId":    chi.URLParam(r, "examId"),
		"studentId": chi.URLParam(r, "studentId"),
	})
	if err != nil {
		h.fail(w, "student exam session", err)
		return
	}
	if len(resp) == 0 {
		httpx.JSON(w, http.StatusOK, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, parseSessionValue(resp))
}

func (h *ExamsHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitExamRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	answers := make([]map[string]any, 0, len(req.Answers))
	for _, a := range req.Answers {
		wire := map[string]any{"questionId": a.QuestionID}
		if a.SelectedOptions != nil {
			wire["selectedOptions"] = a.SelectedOptions
		}
		if a.TextAnswer != "" {
			wire["textAnswer"] = a.TextAnswer
		}
		if encoded, ok := backend.EncodeJSONField(a.StructuredAnswer); ok {
			wire["structuredAnswer"] = encoded
		}
		answers = append(answers, wire)
	}
	resp, err := h.backend.Call(r.Context(), backend.Exams, "SubmitExam", map[string]any{
		"sessionId": req.SessionID,
		"studentId": req.StudentID,
		"answers":   answers,
	})
	if err != nil {
		h.fail(w, "submit exam", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, restored(resp))
}

func (h *ExamsHandler) studentSessions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Exams, "GetStudentSessions", map[string]string{"studentId": chi.URLParam(r, "studentId")})
	if err != nil {
		h.fail(w, "student sessions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, restoredList(resp, "sessions", []any{}))
}

func (h *ExamsHandler) submissions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Exams, "GetExamSubmissions", map[string]string{"examId": chi.URLParam(r, "examId")})
	if err != nil {
		h.fail(w, "exam submissions", err)
		return
	}
	items := backend.Items(resp, "submissions")
	if items == nil {
		httpx.JSON(w, http.StatusOK, []any{})
		return
	}
	httpx.JSON(w, http.StatusOK, backend.MapItems(backend.RestoreDates(items).([]any), parseSession))
}

func (h *ExamsHandler) grade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.backend.Call(r.Context(), backend.Exams, "GradeAnswer", req)
	if err != nil {
		h.fail(w, "grade answer", err)
		return
	}
	answer, ok := backend.RestoreDates(resp["answer"]).(map[string]any)
	if !ok {
		httpx.JSON(w, http.StatusCreated, nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, parseAnswer(answer))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseExamValue(v any) any {
	exam, ok := backend.RestoreDates(v).(map[string]any)
	if !ok {
		return nil
	}
	return parseExam(exam)
}

func parseSessionValue(v any) any {
	session, ok := backend.RestoreDates(v).(map[string]any)
	if !ok {
		return nil
	}
	return parseSession(session)
}

func parseQuestion(q backend.Document) backend.Document {
	out := backend.Clone(q)
	out["options"] = backend.ParseJSONField(q["options"])
	out["correctAnswer"] = backend.ParseJSONField(q["correctAnswer"])
	return out
}

func parseExam(e backend.Document) backend.Document {
	out := backend.Clone(e)
	questions, _ := e["questions"].([]any)
	out["questions"] = backend.MapItems(questions, parseQuestion)
	return out
}

func parseAnswer(a backend.Document) backend.Document {
	out := backend.Clone(a)
	out["structuredAnswer"] = backend.ParseJSONField(a["structuredAnswer"])
	if q, ok := a["question"].(map[string]any); ok {
		out["question"] = parseQuestion(q)
	} else {
		out["question"] = nil
	}
	return out
}

func parseSession(s backend.Document) backend.Document {
	out := backend.Clone(s)
	if exam, ok := s["exam"].(map[string]any); ok {
		out["exam"] = parseExam(exam)
	} else {
		out["exam"] = nil
	}
	answers, _ := s["answers"].([]any)
	out["answers"] = backend.MapItems(answers, parseAnswer)
	return out
}
