package academics

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/platform/httpx"
	"github.com/ulms/ulms-gateway/internal/rbac"
	"github.com/ulms/ulms-gateway/internal/shared"
)

// AssignmentsHandler serves /assignments. Every route needs at least one
// assignment permission.
type AssignmentsHandler struct {
	base
}

// NewAssignmentsHandler constructs an AssignmentsHandler.
func NewAssignmentsHandler(caller Caller, gate rbac.Gate, logger *slog.Logger) *AssignmentsHandler {
	group := rbac.Any(shared.PermAssignmentRead, shared.PermAssignmentWrite, shared.PermAssignmentSubmit)
	return &AssignmentsHandler{base: newBase(caller, gate, group, logger)}
}

// MountRoutes registers assignment routes.
func (h *AssignmentsHandler) MountRoutes(r chi.Router) {
	inherit := h.scope.Route(nil)
	r.With(inherit).Get("/findOne/{id}", h.get)
	r.With(h.scope.Route(rbac.All(shared.PermAssignmentWrite))).Post("/create", h.create)
	r.With(inherit).Get("/student", h.forStudent)
	r.With(inherit).Get("/course/{courseId}", h.forCourse)
	r.With(inherit).Get("/{assignmentId}/submissions", h.submissions)
	r.With(inherit).Post("/submit/{assignmentId}/student", h.submit)
}

type createAssignmentRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	CourseID    string `json:"courseId" validate:"required"`
}

type submitAssignmentRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *AssignmentsHandler) get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Assignment, "GetAssignmentById", map[string]string{"id": chi.URLParam(r, "id")})
	if err != nil {
		h.fail(w, "get assignment", err)
		return
	}
	if len(resp) == 0 {
		httpx.JSON(w, http.StatusOK, nil)
		return
	}
	httpx.JSON(w, http.StatusOK, backend.RestoreDates(parseAssignment(resp)))
}

func (h *AssignmentsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.backend.Call(r.Context(), backend.Assignment, "CreateAssignment", req)
	if err != nil {
		h.fail(w, "create assignment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, restored(resp))
}

func (h *AssignmentsHandler) forStudent(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.Unauthenticated("User not authenticated"))
		return
	}
	h.assignmentList(w, r, "GetStudentAssignments", map[string]string{"studentId": principal.ID})
}

func (h *AssignmentsHandler) forCourse(w http.ResponseWriter, r *http.Request) {
	h.assignmentList(w, r, "GetCourseAssignments", map[string]string{"courseId": chi.URLParam(r, "courseId")})
}

func (h *AssignmentsHandler) assignmentList(w http.ResponseWriter, r *http.Request, method string, req any) {
	resp, err := h.backend.Call(r.Context(), backend.Assignment, method, req)
	if err != nil {
		h.fail(w, "list assignments", err)
		return
	}
	items := backend.Items(resp, "assignments")
	if items == nil {
		httpx.JSON(w, http.StatusOK, nil)
		return
	}
	out := backend.Clone(resp)
	out["assignments"] = backend.MapItems(items, parseAssignment)
	httpx.JSON(w, http.StatusOK, backend.RestoreDates(out))
}

func (h *AssignmentsHandler) submissions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Assignment, "GetAssignmentSubmissions", map[string]string{"assignmentId": chi.URLParam(r, "assignmentId")})
	if err != nil {
		h.fail(w, "assignment submissions", err)
		return
	}
	items := backend.Items(resp, "submissions")
	if items == nil {
		httpx.JSON(w, http.StatusOK, nil)
		return
	}
	out := backend.Clone(resp)
	out["submissions"] = backend.MapItems(items, parseSubmission)
	httpx.JSON(w, http.StatusOK, backend.RestoreDates(out))
}

func (h *AssignmentsHandler) submit(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.Unauthenticated("User not authenticated"))
		return
	}
	var req submitAssignmentRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.backend.Call(r.Context(), backend.Assignment, "SubmitAssignment", map[string]string{
		"assignmentId": chi.URLParam(r, "assignmentId"),
		"studentId":    principal.ID,
		"content":      req.Content,
	})
	if err != nil {
		h.fail(w, "submit assignment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, restored(resp))
}

func parseAssignment(a backend.Document) backend.Document {
	out := backend.Clone(a)
	subs, _ := a["submissions"].([]any)
	out["submissions"] = backend.MapItems(subs, parseSubmission)
	return out
}

// parseSubmission decodes the JSON-encoded analysis fields of a submission.
func parseSubmission(s backend.Document) backend.Document {
	out := backend.Clone(s)
	analysis, ok := s["analysisResult"].(map[string]any)
	if !ok || analysis == nil {
		out["analysisResult"] = nil
		return out
	}
	parsed := backend.Clone(analysis)
	parsed["plagiarismCheck"] = backend.ParseJSONField(analysis["plagiarismCheck"])
	parsed["grading"] = backend.ParseJSONField(analysis["grading"])
	out["analysisResult"] = parsed
	return out
}
