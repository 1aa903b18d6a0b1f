package familynode

import (
	"context"
	"database/sql"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banyan/internal/database"
	"github.com/Ramsey-B/banyan/pkg/fingerprint"
	"github.com/Ramsey-B/banyan/pkg/models"
)

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeDB struct {
	database.DB
	execs int
}

func (f *fakeDB) ExecContext(_ context.Context, _ string, _ ...any) (sql.Result, error) {
	f.execs++
	return fakeResult{}, nil
}

func newTestRepository(db *fakeDB) *Repository {
	return NewRepository(db, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func testNode(personID int) *models.FamilyNode {
	n := &models.FamilyNode{
		ID:         "node-1",
		FamilyCode: "FAM001",
		PersonID:   personID,
		NodeUID:    "uid-1",
		Name:       "Asha",
		Gender:     models.GenderFemale,
	}
	n.SetEdges([]int{}, []int{}, []int{}, []int{})
	return n
}

func TestSaveChanged_SkipsNodesWithCurrentFingerprint(t *testing.T) {
	db := &fakeDB{}
	repo := newTestRepository(db)

	node := testNode(1)
	node.Fingerprint = fingerprint.Generate(node)

	written, err := repo.SaveChanged(context.Background(), []*models.FamilyNode{node})

	require.NoError(t, err)
	assert.Equal(t, 0, written)
	assert.Equal(t, 0, db.execs)
}

func TestSaveChanged_WritesStaleNodesAndRefreshesFingerprint(t *testing.T) {
	db := &fakeDB{}
	repo := newTestRepository(db)

	node := testNode(1)
	node.Fingerprint = fingerprint.Generate(node)
	node.Parents.Data = []int{2}

	written, err := repo.SaveChanged(context.Background(), []*models.FamilyNode{node})

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.Equal(t, 1, db.execs)
	assert.Equal(t, fingerprint.Generate(node), node.Fingerprint)
}
