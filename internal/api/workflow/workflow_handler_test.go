package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	workflowHandler "chainflow-backend/internal/api/workflow"
	"chainflow-backend/internal/service/executor"
	workflowService "chainflow-backend/internal/service/workflow"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/utils"
)

type mockService struct {
	CreateWorkflowFn  func(ctx context.Context, userID int64, walletAddress string, req *types.CreateWorkflowRequest) (*types.Workflow, error)
	GetWorkflowFn     func(ctx context.Context, userID int64, id string) (*types.Workflow, error)
	UpdateWorkflowFn  func(ctx context.Context, userID int64, id string, req *types.UpdateWorkflowRequest) (*types.Workflow, error)
	GetWorkflowLogsFn func(ctx context.Context, userID int64, id string, req *types.GetWorkflowLogsRequest) (*types.GetWorkflowLogsResponse, error)
}

func (m *mockService) CreateWorkflow(ctx context.Context, userID int64, walletAddress string, req *types.CreateWorkflowRequest) (*types.Workflow, error) {
	return m.CreateWorkflowFn(ctx, userID, walletAddress, req)
}

func (m *mockService) ListWorkflows(_ context.Context, _ int64, req *types.GetWorkflowListRequest) (*types.GetWorkflowListResponse, error) {
	return &types.GetWorkflowListResponse{Workflows: []types.Workflow{}, Page: req.Page, PageSize: req.PageSize}, nil
}

func (m *mockService) GetWorkflow(ctx context.Context, userID int64, id string) (*types.Workflow, error) {
	return m.GetWorkflowFn(ctx, userID, id)
}

func (m *mockService) UpdateWorkflow(ctx context.Context, userID int64, id string, req *types.UpdateWorkflowRequest) (*types.Workflow, error) {
	return m.UpdateWorkflowFn(ctx, userID, id, req)
}

func (m *mockService) GetWorkflowLogs(ctx context.Context, userID int64, id string, req *types.GetWorkflowLogsRequest) (*types.GetWorkflowLogsResponse, error) {
	return m.GetWorkflowLogsFn(ctx, userID, id, req)
}

var _ = Describe("Handler", func() {
	var (
		svc    *mockService
		router *gin.Engine
		token  string
	)

	BeforeEach(func() {
		jwtManager := utils.NewJWTManager("test-secret", time.Hour)
		var err error
		token, err = jwtManager.GenerateAccessToken(5, "addr")
		Expect(err).NotTo(HaveOccurred())

		svc = &mockService{}
		router = gin.New()
		workflowHandler.NewHandler(svc, jwtManager).RegisterRoutes(router.Group("/api/v1"))
	})

	do := func(method, path, body string) (*httptest.ResponseRecorder, types.APIResponse) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp types.APIResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return w, resp
	}

	const createBody = `{"name":"deposits","chain_id":1,"tasks":[{"name":"on deposit","type":"trigger","config":{"event_id":7}}]}`

	It("creates a workflow for the authenticated user", func() {
		svc.CreateWorkflowFn = func(_ context.Context, userID int64, address string, req *types.CreateWorkflowRequest) (*types.Workflow, error) {
			Expect(userID).To(Equal(int64(5)))
			Expect(address).To(Equal("addr"))
			Expect(req.Tasks).To(HaveLen(1))
			Expect(string(req.Tasks[0].Config)).To(MatchJSON(`{"event_id":7}`))
			return &types.Workflow{ID: "wf-1", Name: req.Name}, nil
		}

		w, resp := do(http.MethodPost, "/api/v1/workflows", createBody)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Data).To(HaveKeyWithValue("id", "wf-1"))
	})

	It("rejects requests with unknown task types before calling the service", func() {
		w, resp := do(http.MethodPost, "/api/v1/workflows", `{"name":"x","chain_id":1,"tasks":[{"name":"a","type":"sms"}]}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(resp.Error.Code).To(Equal("INVALID_REQUEST"))
	})

	DescribeTable("maps service errors",
		func(err error, status int, code string) {
			svc.CreateWorkflowFn = func(context.Context, int64, string, *types.CreateWorkflowRequest) (*types.Workflow, error) {
				return nil, err
			}
			w, resp := do(http.MethodPost, "/api/v1/workflows", createBody)
			Expect(w.Code).To(Equal(status))
			Expect(resp.Error.Code).To(Equal(code))
		},
		Entry("invalid graph", fmt.Errorf("%w: no trigger", executor.ErrInvalidTaskGraph), http.StatusBadRequest, "INVALID_TASK_GRAPH"),
		Entry("unknown chain", workflowService.ErrChainNotFound, http.StatusBadRequest, "CHAIN_NOT_FOUND"),
		Entry("foreign event", workflowService.ErrEventNotFound, http.StatusBadRequest, "EVENT_NOT_FOUND"),
		Entry("storage failure", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"),
	)

	It("returns 404 for workflows the user cannot see", func() {
		svc.GetWorkflowFn = func(context.Context, int64, string) (*types.Workflow, error) {
			return nil, workflowService.ErrWorkflowNotFound
		}
		w, resp := do(http.MethodGet, "/api/v1/workflows/wf-2", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(resp.Error.Code).To(Equal("WORKFLOW_NOT_FOUND"))
	})

	It("pauses a workflow", func() {
		svc.UpdateWorkflowFn = func(_ context.Context, _ int64, id string, req *types.UpdateWorkflowRequest) (*types.Workflow, error) {
			Expect(*req.Status).To(Equal(types.WorkflowStatusPaused))
			return &types.Workflow{ID: id, Status: *req.Status}, nil
		}
		w, resp := do(http.MethodPatch, "/api/v1/workflows/wf-1", `{"status":"paused"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp.Data).To(HaveKeyWithValue("status", "paused"))
	})

	It("lists execution logs", func() {
		svc.GetWorkflowLogsFn = func(_ context.Context, _ int64, id string, req *types.GetWorkflowLogsRequest) (*types.GetWorkflowLogsResponse, error) {
			Expect(id).To(Equal("wf-1"))
			Expect(req.Page).To(Equal(2))
			return &types.GetWorkflowLogsResponse{Logs: []types.WorkflowLog{{ID: 3, WorkflowID: id}}, Total: 1, Page: 2, PageSize: 20}, nil
		}
		w, resp := do(http.MethodGet, "/api/v1/workflows/wf-1/logs?page=2", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp.Data).To(HaveKeyWithValue("total", BeNumerically("==", 1)))
	})

	It("requires a token", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})
})
