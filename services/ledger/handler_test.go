package ledger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sundayschool-points/pkg/accesscontrol"
	"sundayschool-points/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _ := newConfiguredService(t)
	enforcer, err := accesscontrol.NewDefault()
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.Identify(), middleware.Error())
	RegisterRoutes(r, NewHandler(svc, enforcer))
	return r
}

func postEvent(r *gin.Engine, role string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/churches/church-1/users/student-1/points/events", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(middleware.HeaderActorID, "actor-1")
		req.Header.Set(middleware.HeaderActorRole, role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerApplyEvent(t *testing.T) {
	r := newTestRouter(t)
	present := map[string]any{"type": "attendance", "attendance_id": "att-1", "status": "present"}

	w := postEvent(r, accesscontrol.RoleTeacher, present)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, int64(5), res.Transaction.Points)
	require.Equal(t, int64(5), res.Balance.AvailablePoints)
	require.Equal(t, "actor-1", *res.Transaction.CreatedBy)

	w = postEvent(r, accesscontrol.RoleTeacher, present)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.True(t, res.Duplicate)
}

func TestHandlerApplyEventErrors(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		name string
		role string
		body any
		code int
	}{
		{"no identity", "", map[string]any{"type": "attendance", "attendance_id": "a", "status": "present"}, http.StatusUnauthorized},
		{"student cannot award", accesscontrol.RoleStudent, map[string]any{"type": "attendance", "attendance_id": "a", "status": "present"}, http.StatusForbidden},
		{"teacher cannot admin adjust", accesscontrol.RoleTeacher, map[string]any{"type": "admin_adjustment", "points": 5, "notes": "x"}, http.StatusForbidden},
		{"missing type", accesscontrol.RoleTeacher, map[string]any{"attendance_id": "a"}, http.StatusBadRequest},
		{"unknown type", accesscontrol.RoleTeacher, map[string]any{"type": "birthday"}, http.StatusBadRequest},
		{"missing note", accesscontrol.RoleTeacher, map[string]any{"type": "teacher_adjustment", "points": 5}, http.StatusBadRequest},
		{"insufficient", accesscontrol.RoleChurchAdmin, map[string]any{"type": "store_order_pending", "order_id": "o-1", "points": 20}, http.StatusUnprocessableEntity},
		{"approve unknown order", accesscontrol.RoleChurchAdmin, map[string]any{"type": "store_order_approved", "order_id": "o-2"}, http.StatusConflict},
		{"nothing to revoke", accesscontrol.RoleTeacher, map[string]any{"type": "activity_revocation", "activity_id": "act-9"}, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postEvent(r, tc.role, tc.body)
			require.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}
}

func TestHandlerSystemAppliesAnyEvent(t *testing.T) {
	r := newTestRouter(t)

	w := postEvent(r, accesscontrol.RoleSystem, map[string]any{"type": "activity_completion", "activity_id": "act-1", "points": 12})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = postEvent(r, accesscontrol.RoleSystem, map[string]any{"type": "store_order_pending", "order_id": "o-1", "points": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, int64(2), res.Balance.AvailablePoints)
	require.Equal(t, int64(10), res.Balance.SuspendedPoints)
}
