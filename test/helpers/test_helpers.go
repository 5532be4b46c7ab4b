package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fieldserve/comms-gateway/internal/repository"
	"github.com/fieldserve/comms-gateway/pkg/pg"
	"github.com/fieldserve/comms-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.CompanyEntity{},
		&repository.CustomerEntity{},
		&repository.CommunicationEntity{},
		&repository.InboundRouteEntity{},
		&repository.UnroutedEmailEntity{},
		&repository.AttachmentEntity{},
		&repository.SuppressionEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestCompany(t *testing.T, db *pg.DB, id int64, domain string, receiveAll bool) *repository.CompanyEntity {
	ctx := context.Background()
	company := &repository.CompanyEntity{
		ID:              id,
		Name:            "Test Company",
		EmailDomain:     domain,
		EmailReceiveAll: receiveAll,
	}
	err := db.Write(ctx).Create(company).Error
	require.NoError(t, err)
	return company
}

func CreateTestCustomer(t *testing.T, db *pg.DB, companyID int64, email string) *repository.CustomerEntity {
	ctx := context.Background()
	customer := &repository.CustomerEntity{
		CompanyID: companyID,
		Name:      "Test Customer",
		Email:     email,
	}
	err := db.Write(ctx).Create(customer).Error
	require.NoError(t, err)
	return customer
}

func CreateTestRoute(t *testing.T, db *pg.DB, companyID int64, address string) *repository.InboundRouteEntity {
	ctx := context.Background()
	route := &repository.InboundRouteEntity{
		CompanyID:    companyID,
		RouteAddress: address,
		Enabled:      true,
		Status:       "active",
	}
	err := db.Write(ctx).Create(route).Error
	require.NoError(t, err)
	return route
}

func CreateTestCommunication(t *testing.T, db *pg.DB, companyID int64, providerMessageID string) *repository.CommunicationEntity {
	ctx := context.Background()
	comm := &repository.CommunicationEntity{
		CompanyID:         companyID,
		Direction:         "outbound",
		Channel:           "email",
		ToAddress:         "jane@customer.com",
		Status:            "queued",
		ProviderMessageID: providerMessageID,
		CreatedAt:         time.Now(),
	}
	err := db.Write(ctx).Create(comm).Error
	require.NoError(t, err)
	return comm
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
