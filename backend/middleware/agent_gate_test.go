package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/shhady/leadform/backend/agent"
	"github.com/shhady/leadform/backend/model"
)

func TestAgentGate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := agent.NewRegistryFrom([]model.Agent{{ID: "agent1", Name: "שאדי"}})

	router := gin.New()
	gate := AgentGate(registry)
	router.GET("/:agent", gate, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("agent"))
	})
	router.GET("/:agent/form", gate, func(c *gin.Context) {
		c.String(http.StatusOK, "form:"+c.GetString("agent"))
	})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{"known agent", "/agent1", http.StatusOK, "agent1"},
		{"known agent form", "/agent1/form", http.StatusOK, "form:agent1"},
		{"unknown agent", "/agent9", http.StatusFound, ""},
		{"unknown agent form", "/agent9/form", http.StatusFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusFound {
				if loc := w.Header().Get("Location"); loc != InvalidAgentRedirect {
					t.Errorf("Expected redirect to '%s', got '%s'", InvalidAgentRedirect, loc)
				}
				return
			}
			if w.Body.String() != tt.expectedBody {
				t.Errorf("Expected body '%s', got '%s'", tt.expectedBody, w.Body.String())
			}
		})
	}
}
