package testutil

import (
	"context"
	"time"

	"github.com/parcelbase/parcelbase/internal/cache"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	"github.com/parcelbase/parcelbase/internal/domain/user"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
	"github.com/parcelbase/parcelbase/internal/sentry"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/parcelbase/parcelbase/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the in-memory repositories for testing
type Stores struct {
	PackageRepo   *InMemoryPackageStore
	HistoryRepo   *InMemoryHistoryStore
	ScanRepo      *InMemoryScanStore
	InventoryRepo *InMemoryInventoryStore
	UserRepo      *InMemoryUserStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx        context.Context
	stores     Stores
	publisher  *RecordingEventPublisher
	auditQueue *RecordingAuditQueue
	cache      cache.Cache
	db         postgres.IClient
	logger     *logger.Logger
	config     *config.Configuration
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Tracking.Origin = "https://parcels.test"
	// keep transient lookup retries fast
	cfg.Scanner.LookupRetry.InitialInterval = time.Millisecond
	cfg.Scanner.LookupRetry.MaxElapsedTime = time.Second

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		PackageRepo:   NewInMemoryPackageStore(),
		HistoryRepo:   NewInMemoryHistoryStore(),
		ScanRepo:      NewInMemoryScanStore(),
		InventoryRepo: NewInMemoryInventoryStore(),
		UserRepo:      NewInMemoryUserStore(),
	}
	s.publisher = NewRecordingEventPublisher()
	s.auditQueue = NewRecordingAuditQueue()
	s.cache = cache.New(true, time.Minute, time.Minute)
	s.db = postgres.PassthroughClient{}
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.PackageRepo.Clear()
	s.stores.HistoryRepo.Clear()
	s.stores.ScanRepo.Clear()
	s.stores.InventoryRepo.Clear()
	s.stores.UserRepo.Clear()
	s.publisher.Clear()
	s.auditQueue.Clear()
	s.cache.Flush(s.ctx)
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetAdminContext returns the test context acting as an admin
func (s *BaseServiceTestSuite) GetAdminContext() context.Context {
	return AdminContext(s.ctx)
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the recording event publisher
func (s *BaseServiceTestSuite) GetPublisher() *RecordingEventPublisher {
	return s.publisher
}

// GetAuditQueue returns the recording audit retry queue
func (s *BaseServiceTestSuite) GetAuditQueue() *RecordingAuditQueue {
	return s.auditQueue
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetSentry returns a disabled sentry service
func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return nil
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// CreatePackage stores a package in status with the given short code and
// its creation history row.
func (s *BaseServiceTestSuite) CreatePackage(shortCode string, status types.PackageStatus) *parcel.Package {
	pkg := &parcel.Package{
		ID:           types.GeneratePackageID(),
		ShortCode:    shortCode,
		ContentsNote: "To: Test Recipient",
		Status:       status,
		Version:      1,
		BaseModel:    types.GetDefaultBaseModel(s.ctx),
	}
	s.Require().NoError(s.stores.PackageRepo.Create(s.ctx, pkg))
	s.Require().NoError(s.stores.HistoryRepo.Create(s.ctx,
		statushistory.New(s.ctx, pkg.ID, nil, status, nil, nil)))
	s.stores.PackageRepo.Reset()
	s.stores.HistoryRepo.Reset()
	return pkg
}

// CreateItem stores an inventory item with quantity in stock
func (s *BaseServiceTestSuite) CreateItem(sku, name string, quantity int64) *inventory.Item {
	item := &inventory.Item{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVENTORY_ITEM),
		SKU:       sku,
		Name:      name,
		Quantity:  decimal.NewFromInt(quantity),
		Unit:      "pcs",
		BaseModel: types.GetDefaultBaseModel(s.ctx),
	}
	s.Require().NoError(s.stores.InventoryRepo.CreateItem(s.ctx, item))
	s.stores.InventoryRepo.Reset()
	return item
}

// CreateUser stores an active user
func (s *BaseServiceTestSuite) CreateUser(id string, role types.UserRole) *user.User {
	u := user.NewUser(s.ctx, id, "Test "+string(role), role)
	s.Require().NoError(s.stores.UserRepo.Create(s.ctx, u))
	s.stores.UserRepo.Reset()
	return u
}
