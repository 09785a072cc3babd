// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jordanlanch/estatecrm/pkg/database"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a migrated sqlite client that is closed when the test ends.
func Open(t testing.TB) *database.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	url := fmt.Sprintf("sqlite://file:%s_%d?mode=memory&cache=private&_fk=1", name, seq.Add(1))

	client, err := database.Open(url, database.Options{LogLevel: gormlogger.Silent})
	if err != nil {
		t.Fatalf("failed opening test database: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
