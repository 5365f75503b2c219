package catalog

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const accessQuery = `(?s)SELECT access_type, is_preview, password, allow_download FROM asset_access\s+WHERE tenant_id=\$1 AND entity_type=\$2 AND entity_id=\$3`

func TestGetAccessDescriptor_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(accessQuery).
		WithArgs("t1", "lesson", "l1").
		WillReturnRows(sqlmock.NewRows([]string{"access_type", "is_preview", "password", "allow_download"}).
			AddRow("PASSWORD", false, "secret", true))

	d, err := repo.GetAccessDescriptor(context.Background(), "t1", "lesson", "l1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.AccessDescriptor{
		TenantID: "t1", EntityType: "lesson", EntityID: "l1",
		AccessType: models.AccessPassword, Password: "secret", AllowDownload: true,
	}
	if *d != want {
		t.Fatalf("got %+v, want %+v", *d, want)
	}
}

func TestGetAccessDescriptor_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(accessQuery).
		WithArgs("t1", "lesson", "nope").
		WillReturnRows(sqlmock.NewRows([]string{"access_type", "is_preview", "password", "allow_download"}))

	_, err := repo.GetAccessDescriptor(context.Background(), "t1", "lesson", "nope")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGetAccessDescriptor_DBErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(accessQuery).WillReturnError(errors.New("db err"))

	_, err := repo.GetAccessDescriptor(context.Background(), "t1", "lesson", "l1")
	if err == nil || !regexp.MustCompile(`failed to select access: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestIsEnrolled(t *testing.T) {
	for _, enrolled := range []bool{true, false} {
		repo, mock, db := newRepoWithMock(t)

		mock.ExpectQuery(`(?s)SELECT EXISTS \(SELECT 1 FROM enrollments\s+WHERE tenant_id=\$1 AND user_id=\$2 AND entity_type=\$3 AND entity_id=\$4\)`).
			WithArgs("t1", "u1", "lesson", "l1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(enrolled))

		got, err := repo.IsEnrolled(context.Background(), "t1", "u1", "lesson", "l1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != enrolled {
			t.Fatalf("want %v, got %v", enrolled, got)
		}
		db.Close()
	}
}

func TestIsEnrolled_DBErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errors.New("db err"))

	_, err := repo.IsEnrolled(context.Background(), "t1", "u1", "lesson", "l1")
	if err == nil || !regexp.MustCompile(`failed to select enrollment: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
