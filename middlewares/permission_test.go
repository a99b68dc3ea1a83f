package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/gin-gonic/gin"
)

func permissionTestRouter(role string, ownerId string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := c.Request.Context()
		if role != "" {
			ctx = utils.SetUserRoleInContext(ctx, role)
		}
		if ownerId != "" {
			ctx = utils.SetOwnerIdInContext(ctx, ownerId)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.GET("/guarded", RequirePermission("create_order"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequirePermissionStatusTaxonomy(t *testing.T) {
	cases := []struct {
		name    string
		role    string
		ownerId string
		want    int
	}{
		{name: "missing role", role: "", ownerId: "owner-1", want: http.StatusBadRequest},
		{name: "missing owner id", role: "Cashier", ownerId: "", want: http.StatusBadRequest},
		{name: "admin bypasses lookup", role: "Admin", ownerId: "owner-1", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := permissionTestRouter(tc.role, tc.ownerId)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("got status %d, want %d (body: %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}
