package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
	"github.com/example/nucmed-tracker/internal/workflow"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers, clocks and the default room catalog.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Catalog     *workflow.Catalog
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Catalog:     workflow.DefaultCatalog(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Catalog == nil {
		factory.Catalog = workflow.DefaultCatalog()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithCatalog overrides the room catalog used by the factory.
func WithCatalog(catalog *workflow.Catalog) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Catalog = catalog
	}
}

// PatientServiceDeps captures dependencies for constructing a patient service.
type PatientServiceDeps struct {
	Patients    application.PatientRepository
	Catalog     *workflow.Catalog
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewPatientService builds a patient service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewPatientService(deps PatientServiceDeps) *application.PatientService {
	catalog := deps.Catalog
	if catalog == nil {
		catalog = f.Catalog
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewPatientServiceWithLogger(
		deps.Patients,
		catalog,
		idGen,
		now,
		deps.Logger,
	)
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users       application.UserRepository
	Roles       application.RoleStore
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewUserServiceWithLogger(
		deps.Users,
		deps.Roles,
		idGen,
		now,
		deps.Logger,
	)
}

// RoleServiceDeps captures dependencies for constructing a role service.
type RoleServiceDeps struct {
	Roles       application.RoleRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewRoleService builds a role service using the supplied dependencies.
func (f *ServiceFactory) NewRoleService(deps RoleServiceDeps) *application.RoleService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewRoleServiceWithLogger(
		deps.Roles,
		idGen,
		now,
		deps.Logger,
	)
}

// InventoryServiceDeps captures dependencies for constructing an inventory
// service.
type InventoryServiceDeps struct {
	Assets      application.AssetRepository
	Stock       application.StockRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewInventoryService builds an inventory service using the supplied
// dependencies.
func (f *ServiceFactory) NewInventoryService(deps InventoryServiceDeps) *application.InventoryService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewInventoryServiceWithLogger(
		deps.Assets,
		deps.Stock,
		idGen,
		now,
		deps.Logger,
	)
}

// HotLabServiceDeps captures dependencies for constructing a hot-lab service.
type HotLabServiceDeps struct {
	Lots        application.HotLabRepository
	Patients    application.PatientFinder
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewHotLabService builds a hot-lab service using the supplied dependencies.
func (f *ServiceFactory) NewHotLabService(deps HotLabServiceDeps) *application.HotLabService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewHotLabServiceWithLogger(
		deps.Lots,
		deps.Patients,
		idGen,
		now,
		deps.Logger,
	)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	Roles          application.RoleStore
	PasswordVerify application.PasswordVerifier
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	token := deps.TokenGenerator
	if token == nil {
		token = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.Roles,
		deps.PasswordVerify,
		token,
		now,
		deps.SessionTTL,
		deps.Logger,
	)
}

// ReportingServiceDeps captures dependencies for constructing a reporting
// service.
type ReportingServiceDeps struct {
	Patients application.PatientRepository
	Catalog  *workflow.Catalog
	Stats    application.ReferenceStatsClient
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewReportingService builds a reporting service using the supplied
// dependencies.
func (f *ServiceFactory) NewReportingService(deps ReportingServiceDeps) *application.ReportingService {
	catalog := deps.Catalog
	if catalog == nil {
		catalog = f.Catalog
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewReportingServiceWithLogger(
		deps.Patients,
		catalog,
		deps.Stats,
		now,
		deps.Logger,
	)
}
