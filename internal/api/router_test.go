package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/parcelbase/parcelbase/internal/api/dto"
	v1 "github.com/parcelbase/parcelbase/internal/api/v1"
	"github.com/parcelbase/parcelbase/internal/auth"
	"github.com/parcelbase/parcelbase/internal/rest/middleware"
	"github.com/parcelbase/parcelbase/internal/scanner"
	"github.com/parcelbase/parcelbase/internal/service"
	"github.com/parcelbase/parcelbase/internal/testutil"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router        *gin.Engine
	manager       *scanner.Manager
	operatorToken string
	adminToken    string
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	gin.SetMode(gin.TestMode)

	cfg := s.GetConfig()
	log := s.GetLogger()
	stores := s.GetStores()
	params := service.NewServiceParams(
		log, cfg, s.GetDB(), s.GetCache(), s.GetSentry(),
		stores.PackageRepo, stores.HistoryRepo, stores.ScanRepo, stores.InventoryRepo, stores.UserRepo,
		s.GetPublisher(), s.GetAuditQueue(),
	)

	status := service.NewStatusService(params)
	lookup := service.NewLookupService(params)
	users := service.NewUserService(params)
	s.manager = scanner.NewManager(cfg, service.NewScanBackend(params, lookup, status), scanner.NewCameraRegistry(), log)

	handlers := Handlers{
		Health:      v1.NewHealthHandler(s.manager, log),
		Package:     v1.NewPackageHandler(service.NewPackageService(params, status), log),
		Lookup:      v1.NewLookupHandler(cfg, lookup, log),
		ScanSession: v1.NewScanSessionHandler(s.manager, log),
		ScanStream:  v1.NewScanStreamHandler(cfg, s.manager, log),
		Inventory:   v1.NewInventoryHandler(service.NewInventoryService(params), log),
		User:        v1.NewUserHandler(users, log),
		Tracking:    v1.NewTrackingHandler(service.NewTrackingService(params), log),
	}
	provider := auth.NewLocalAuth(cfg)
	s.router = NewRouter(handlers, cfg, log, provider, users)

	s.CreateUser(testutil.TestOperatorID, types.UserRoleStandard)
	s.CreateUser(testutil.TestAdminID, types.UserRoleAdmin)

	var err error
	s.operatorToken, err = provider.GenerateToken(testutil.TestOperatorID, time.Hour)
	s.Require().NoError(err)
	s.adminToken, err = provider.GenerateToken(testutil.TestAdminID, time.Hour)
	s.Require().NoError(err)
}

func (s *RouterSuite) TearDownTest() {
	s.manager.CloseAll()
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *RouterSuite) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(types.HeaderAuthorization, "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *RouterSuite) errorOf(w *httptest.ResponseRecorder) middleware.ErrorDetail {
	var resp middleware.ErrorResponse
	s.decode(w, &resp)
	s.False(resp.Success)
	return resp.Error
}

func (s *RouterSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"ok"`)
}

func (s *RouterSuite) TestPrivateRoutesNeedToken() {
	w := s.do(http.MethodGet, "/v1/packages", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("unauthorized", s.errorOf(w).Code)

	w = s.do(http.MethodGet, "/v1/packages", "not-a-token", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestUnknownUserIsForbidden() {
	token, err := auth.NewLocalAuth(s.GetConfig()).GenerateToken("usr_nobody", time.Hour)
	s.Require().NoError(err)

	w := s.do(http.MethodGet, "/v1/users/me", token, nil)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterSuite) TestTrackingIsPublic() {
	s.CreatePackage("TRK123", types.PackageStatusInTransit)

	w := s.do(http.MethodGet, "/track/TRK123", "", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.TrackingResponse
	s.decode(w, &resp)
	s.Equal("TRK123", resp.ShortCode)
	s.Equal(types.PackageStatusInTransit, resp.Status)
	s.NotContains(w.Body.String(), testutil.TestOperatorID)
}

func (s *RouterSuite) TestLookup() {
	pkg := s.CreatePackage("LKP001", types.PackageStatusPrinted)

	w := s.do(http.MethodPost, "/v1/lookup", s.operatorToken, dto.LookupRequest{
		Raw: "https://parcels.test/track/LKP001",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.LookupResponse
	s.decode(w, &resp)
	s.Equal("LKP001", resp.Code)
	s.Equal(pkg.ID, resp.Package.ID)
	s.Equal("https://parcels.test/track/LKP001", resp.Package.TrackingURL)

	w = s.do(http.MethodPost, "/v1/lookup", s.operatorToken, dto.LookupRequest{Raw: "NOPE99"})
	s.Equal(http.StatusNotFound, w.Code)
	detail := s.errorOf(w)
	s.Equal("not_found", detail.Code)
	s.Equal("No package found for NOPE99", detail.Display)
}

func (s *RouterSuite) TestManualStatusChangeConflict() {
	pkg := s.CreatePackage("MAN001", types.PackageStatusPrinted)
	path := "/v1/packages/" + pkg.ID + "/status"

	w := s.do(http.MethodPost, path, s.operatorToken, dto.ChangeStatusRequest{
		ExpectedStatus: types.PackageStatusPrinted,
		ToStatus:       types.PackageStatusHandedOver,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	// a second operator still looking at the old status
	w = s.do(http.MethodPost, path, s.operatorToken, dto.ChangeStatusRequest{
		ExpectedStatus: types.PackageStatusPrinted,
		ToStatus:       types.PackageStatusQueuedForPrint,
	})
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("version_conflict", s.errorOf(w).Code)
}

func (s *RouterSuite) TestInvalidTransitionIsUnprocessable() {
	pkg := s.CreatePackage("BAD001", types.PackageStatusDelivered)

	w := s.do(http.MethodPost, "/v1/packages/"+pkg.ID+"/status", s.operatorToken, dto.ChangeStatusRequest{
		ExpectedStatus: types.PackageStatusDelivered,
		ToStatus:       types.PackageStatusCreated,
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *RouterSuite) TestDeleteRequiresAdmin() {
	pkg := s.CreatePackage("DEL001", types.PackageStatusCreated)
	path := "/v1/packages/" + pkg.ID

	w := s.do(http.MethodDelete, path, s.operatorToken, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, path, s.adminToken, nil)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, path, s.adminToken, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestScanSessionSingleFlow() {
	pkg := s.CreatePackage("SCN001", types.PackageStatusHandedOver)

	w := s.do(http.MethodPost, "/v1/scan-sessions", s.operatorToken, dto.CreateScanSessionRequest{
		Mode: types.ScanModeSingle,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var snap scanner.Snapshot
	s.decode(w, &snap)
	s.Equal(types.SessionStateIdleScanning, snap.State)
	s.True(snap.CameraActive)
	base := "/v1/scan-sessions/" + snap.ID

	w = s.do(http.MethodPost, base+"/frames", s.operatorToken, dto.DecodeRequest{Text: "SCN001", Format: "qr_code"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var decoded dto.DecodeResponse
	s.decode(w, &decoded)
	s.Equal(types.DecodeOutcomeAccepted, decoded.Outcome)
	s.Equal(types.SessionStatePackageDetail, decoded.Session.State)
	s.False(decoded.Session.CameraActive)

	// confirming before the picker is open is out of order
	w = s.do(http.MethodPost, base+"/confirm", s.operatorToken, dto.ConfirmStatusRequest{ToStatus: types.PackageStatusInTransit})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, base+"/picker", s.operatorToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var picker dto.StatusPickerResponse
	s.decode(w, &picker)
	s.Contains(picker.NextStatuses, types.PackageStatusInTransit)

	w = s.do(http.MethodPost, base+"/confirm", s.operatorToken, dto.ConfirmStatusRequest{ToStatus: types.PackageStatusInTransit})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var confirmed dto.ConfirmStatusResponse
	s.decode(w, &confirmed)
	s.True(confirmed.Result.AuditComplete)
	s.Equal(types.PackageStatusInTransit, confirmed.Result.Package.Status)
	s.Equal(types.SessionStateIdleScanning, confirmed.Session.State)

	stored, err := s.GetStores().PackageRepo.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Equal(types.PackageStatusInTransit, stored.Status)

	w = s.do(http.MethodDelete, base, s.operatorToken, nil)
	s.Equal(http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, base, s.operatorToken, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestScanSessionNotVisibleToOthers() {
	w := s.do(http.MethodPost, "/v1/scan-sessions", s.adminToken, dto.CreateScanSessionRequest{Mode: types.ScanModeSingle})
	s.Require().Equal(http.StatusCreated, w.Code)
	var snap scanner.Snapshot
	s.decode(w, &snap)

	w = s.do(http.MethodGet, "/v1/scan-sessions/"+snap.ID, s.operatorToken, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestBulkSessionRequiresTarget() {
	w := s.do(http.MethodPost, "/v1/scan-sessions", s.operatorToken, dto.CreateScanSessionRequest{Mode: types.ScanModeBulk})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestScanStream() {
	s.CreatePackage("WS0001", types.PackageStatusHandedOver)

	w := s.do(http.MethodPost, "/v1/scan-sessions", s.operatorToken, dto.CreateScanSessionRequest{Mode: types.ScanModeSingle})
	s.Require().Equal(http.StatusCreated, w.Code)
	var snap scanner.Snapshot
	s.decode(w, &snap)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/scan-sessions/" + snap.ID + "/stream?access_token=" + s.operatorToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))

	var ev v1.StreamEvent
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal(v1.StreamEventSnapshot, ev.Type)
	s.Require().NotNil(ev.Session)
	s.Equal(types.SessionStateIdleScanning, ev.Session.State)

	s.Require().NoError(conn.WriteJSON(v1.StreamMessage{Type: v1.StreamMessageFrame, Text: "WS0001", Format: "qr_code"}))

	var (
		outcome types.DecodeOutcome
		state   types.SessionState
	)
	for outcome == "" || state != types.SessionStatePackageDetail {
		var next v1.StreamEvent
		s.Require().NoError(conn.ReadJSON(&next))
		switch next.Type {
		case v1.StreamEventOutcome:
			outcome = next.Outcome
		case v1.StreamEventSnapshot:
			state = next.Session.State
		}
	}
	s.Equal(types.DecodeOutcomeAccepted, outcome)

	s.Require().NoError(s.manager.Close(testutil.SetupContext(), snap.ID))
	for {
		var next v1.StreamEvent
		s.Require().NoError(conn.ReadJSON(&next))
		if next.Type == v1.StreamEventClosed {
			break
		}
	}
}
