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

// CoursesHandler serves /courses.
type CoursesHandler struct {
	base
}

// NewCoursesHandler constructs a CoursesHandler.
func NewCoursesHandler(caller Caller, gate rbac.Gate, logger *slog.Logger) *CoursesHandler {
	return &CoursesHandler{base: newBase(caller, gate, nil, logger)}
}

// MountRoutes registers course routes. Callers must already be authenticated.
func (h *CoursesHandler) MountRoutes(r chi.Router) {
	write := h.scope.Route(rbac.All(shared.PermCourseWrite))
	r.Get("/", h.list)
	r.With(write).Post("/create", h.create)
	r.With(write).Post("/enroll", h.enroll)
	r.Get("/enrollments/{studentId}", h.enrollments)
	r.Get("/{id}", h.get)
}

type createCourseRequest struct {
	Title        string `json:"title" validate:"required"`
	Code         string `json:"code" validate:"required"`
	Description  string `json:"description"`
	InstructorID string `json:"instructorId" validate:"required"`
}

type enrollRequest struct {
	CourseID  string `json:"courseId" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
	Semester  string `json:"semester"`
	Year      int    `json:"year"`
}

func (h *CoursesHandler) list(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Courses, "GetAllCourses", struct{}{})
	if err != nil {
		h.fail(w, "list courses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, restoredList(resp, "courses", []any{}))
}

func (h *CoursesHandler) get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Courses, "GetCourseById", map[string]string{"id": chi.URLParam(r, "id")})
	if err != nil {
		h.fail(w, "get course", err)
		return
	}
	httpx.JSON(w, http.StatusOK, restored(resp))
}

func (h *CoursesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.backend.Call(r.Context(), backend.Courses, "CreateCourse", req)
	if err != nil {
		h.fail(w, "create course", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, restored(resp))
}

func (h *CoursesHandler) enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.backend.Call(r.Context(), backend.Courses, "CreateCourseOffer", req)
	if err != nil {
		h.fail(w, "enroll student", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, restored(resp))
}

func (h *CoursesHandler) enrollments(w http.ResponseWriter, r *http.Request) {
	resp, err := h.backend.Call(r.Context(), backend.Courses, "GetOffersForStudent", map[string]string{"studentId": chi.URLParam(r, "studentId")})
	if err != nil {
		h.fail(w, "student enrollments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, restoredList(resp, "offers", []any{}))
}
