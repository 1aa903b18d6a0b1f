package treelink

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/banyan/internal/database"
	"github.com/Ramsey-B/banyan/pkg/models"
	"github.com/Ramsey-B/banyan/pkg/mutation"
)

func strPtr(s string) *string { return &s }

func rolePtr(r models.ParentRole) *models.ParentRole { return &r }

type fakeLinks struct {
	byID    map[string]*models.LinkRequest
	pending *models.LinkRequest
	created *models.LinkRequest
}

func (f *fakeLinks) Create(_ context.Context, req *models.LinkRequest) (*models.LinkRequest, error) {
	req.ID = "link-1"
	req.Status = models.LinkRequestPending
	f.byID[req.ID] = req
	f.created = req
	return req, nil
}

func (f *fakeLinks) Get(_ context.Context, id string) (*models.LinkRequest, error) {
	return f.byID[id], nil
}

func (f *fakeLinks) FindPendingBetween(_ context.Context, _, _, _, _ string) (*models.LinkRequest, error) {
	return f.pending, nil
}

func (f *fakeLinks) UpdateStatus(_ context.Context, id string, status models.LinkRequestStatus) error {
	if link := f.byID[id]; link != nil {
		link.Status = status
	}
	return nil
}

type fakeMembers struct {
	admins    map[string]bool
	blocked   map[string]bool
	memberIDs map[string][]string
}

func (f *fakeMembers) IsFamilyAdmin(_ context.Context, userID, familyCode string) (bool, error) {
	return f.admins[userID+":"+familyCode], nil
}

func (f *fakeMembers) IsBlockedEitherWay(_ context.Context, userA, userB string) (bool, error) {
	return f.blocked[userA+":"+userB] || f.blocked[userB+":"+userA], nil
}

func (f *fakeMembers) GetApprovedMemberIDs(_ context.Context, familyCode string) ([]string, error) {
	return f.memberIDs[familyCode], nil
}

// fakeStore backs both the validation lookups and the mutation engine
type fakeStore struct {
	families map[string][]*models.FamilyNode
	nextID   int
}

func (f *fakeStore) LoadFamily(_ context.Context, familyCode string) ([]*models.FamilyNode, error) {
	return f.families[familyCode], nil
}

func (f *fakeStore) SaveChanged(_ context.Context, nodes []*models.FamilyNode) (int, error) {
	return len(nodes), nil
}

func (f *fakeStore) NextPersonID(_ context.Context, _ string) (int, error) {
	f.nextID++
	return f.nextID, nil
}

func (f *fakeStore) Create(_ context.Context, node *models.FamilyNode) (*models.FamilyNode, error) {
	f.families[node.FamilyCode] = append(f.families[node.FamilyCode], node)
	return node, nil
}

func (f *fakeStore) GetByPersonID(_ context.Context, familyCode string, personID int) (*models.FamilyNode, error) {
	for _, n := range f.families[familyCode] {
		if n.PersonID == personID {
			return n, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Remove(_ context.Context, familyCode string, personID int) error {
	kept := f.families[familyCode][:0]
	for _, n := range f.families[familyCode] {
		if n.PersonID != personID {
			kept = append(kept, n)
		}
	}
	f.families[familyCode] = kept
	return nil
}

func (f *fakeStore) GetByUID(_ context.Context, familyCode, nodeUID string) (*models.FamilyNode, error) {
	for _, n := range f.families[familyCode] {
		if n.NodeUID == nodeUID {
			return n, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) findShadow(familyCode, canonicalFamily, canonicalUID string) *models.FamilyNode {
	for _, n := range f.families[familyCode] {
		if n.IsExternalLinked && n.CanonicalFamilyCode != nil && *n.CanonicalFamilyCode == canonicalFamily &&
			n.CanonicalNodeUID != nil && *n.CanonicalNodeUID == canonicalUID {
			return n
		}
	}
	return nil
}

type fakeRepairs struct {
	store    *fakeStore
	repaired []string
}

func (f *fakeRepairs) RepairFamilyTx(_ context.Context, familyCode string) (*models.RepairReport, []*models.FamilyNode, error) {
	f.repaired = append(f.repaired, familyCode)
	return &models.RepairReport{FamilyCode: familyCode}, f.store.families[familyCode], nil
}

type fakeTx struct {
	database.Tx
	committed bool
}

func (f *fakeTx) Commit(_ context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(_ context.Context) error { return nil }
func (f *fakeTx) IsOpen() bool                     { return !f.committed }

type fakeDB struct {
	database.DB
	tx *fakeTx
}

func (f *fakeDB) GetTx(ctx context.Context, _ *sql.TxOptions) (context.Context, database.Tx, error) {
	return ctx, f.tx, nil
}

type fixture struct {
	service *Service
	links   *fakeLinks
	members *fakeMembers
	store   *fakeStore
	repairs *fakeRepairs
	db      *fakeDB
}

func newFixture() *fixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	links := &fakeLinks{byID: map[string]*models.LinkRequest{}}
	members := &fakeMembers{admins: map[string]bool{}, blocked: map[string]bool{}}
	store := &fakeStore{families: map[string][]*models.FamilyNode{}, nextID: 100}
	repairs := &fakeRepairs{store: store}
	db := &fakeDB{tx: &fakeTx{}}

	service := NewService(db, links, store, members,
		mutation.NewEngine(store, logger), repairs, nil, nil, logger)

	return &fixture{service: service, links: links, members: members, store: store, repairs: repairs, db: db}
}

func node(familyCode string, personID int, name string, gender models.Gender, generation int) *models.FamilyNode {
	n := &models.FamilyNode{
		FamilyCode: familyCode,
		PersonID:   personID,
		NodeUID:    name + "-uid",
		Name:       name,
		Gender:     gender,
		Generation: generation,
	}
	n.SetEdges([]int{}, []int{}, []int{}, []int{})
	return n
}

func (f *fixture) seedFamilies() {
	f.store.families["FAM001"] = []*models.FamilyNode{
		node("FAM001", 1, "Asha", models.GenderFemale, 0),
	}
	f.store.families["FAM002"] = []*models.FamilyNode{
		node("FAM002", 7, "Ravi", models.GenderMale, 0),
	}
}

func linkRequest(relType models.RelationshipType, role *models.ParentRole) *models.CreateLinkRequestRequest {
	return &models.CreateLinkRequestRequest{
		SenderFamilyCode:   "FAM002",
		SenderNodeUID:      "Ravi-uid",
		ReceiverFamilyCode: "FAM001",
		ReceiverNodeUID:    "Asha-uid",
		RelationshipType:   relType,
		ParentRole:         role,
	}
}

func TestRequest_RejectsSameFamily(t *testing.T) {
	f := newFixture()
	req := linkRequest(models.RelationshipSpouse, nil)
	req.ReceiverFamilyCode = "FAM002"

	_, err := f.service.Request(context.Background(), "admin", req)

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestRequest_ParentLinkRequiresRole(t *testing.T) {
	f := newFixture()

	_, err := f.service.Request(context.Background(), "admin", linkRequest(models.RelationshipParent, nil))

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestRequest_RoleOnlyValidForParentLinks(t *testing.T) {
	f := newFixture()

	_, err := f.service.Request(context.Background(), "admin", linkRequest(models.RelationshipSpouse, rolePtr(models.ParentRoleFather)))

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestRequest_RequiresSenderAdmin(t *testing.T) {
	f := newFixture()
	f.seedFamilies()

	_, err := f.service.Request(context.Background(), "admin", linkRequest(models.RelationshipSpouse, nil))

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestRequest_UnknownNodeNotFound(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	f.members.admins["admin:FAM002"] = true
	req := linkRequest(models.RelationshipSpouse, nil)
	req.SenderNodeUID = "nobody-uid"

	_, err := f.service.Request(context.Background(), "admin", req)

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestRequest_GenderMustMatchParentRole(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	f.members.admins["admin:FAM002"] = true

	// Ravi is male; a mother link cannot name him
	_, err := f.service.Request(context.Background(), "admin", linkRequest(models.RelationshipParent, rolePtr(models.ParentRoleMother)))

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestRequest_BlockedUsersForbidden(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	f.members.admins["admin:FAM002"] = true
	f.store.families["FAM001"][0].UserID = strPtr("user-asha")
	f.members.blocked["admin:user-asha"] = true

	_, err := f.service.Request(context.Background(), "admin", linkRequest(models.RelationshipSpouse, nil))

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestRequest_DuplicatePendingConflict(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	f.members.admins["admin:FAM002"] = true
	f.links.pending = &models.LinkRequest{ID: "existing"}

	_, err := f.service.Request(context.Background(), "admin", linkRequest(models.RelationshipSpouse, nil))

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}

func TestRequest_CreatesPendingRequest(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	f.members.admins["admin:FAM002"] = true

	link, err := f.service.Request(context.Background(), "admin", linkRequest(models.RelationshipParent, rolePtr(models.ParentRoleFather)))

	require.NoError(t, err)
	assert.Equal(t, models.LinkRequestPending, link.Status)
	assert.Equal(t, "admin", link.RequestedBy)
	require.NotNil(t, f.links.created)
}

func TestAccept_RequiresReceiverAdmin(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	f.links.byID["link-1"] = &models.LinkRequest{
		ID: "link-1", SenderFamilyCode: "FAM002", ReceiverFamilyCode: "FAM001",
		Status: models.LinkRequestPending,
	}
	f.members.admins["admin:FAM002"] = true // sender admin cannot accept

	_, err := f.service.Accept(context.Background(), "admin", "link-1")

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestAccept_NonPendingConflict(t *testing.T) {
	f := newFixture()
	f.links.byID["link-1"] = &models.LinkRequest{
		ID: "link-1", SenderFamilyCode: "FAM002", ReceiverFamilyCode: "FAM001",
		Status: models.LinkRequestRejected,
	}
	f.members.admins["admin:FAM001"] = true

	_, err := f.service.Accept(context.Background(), "admin", "link-1")

	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}

func TestAccept_ParentLinkWiresBothFamilies(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	f.members.admins["admin:FAM001"] = true
	role := models.ParentRoleFather
	f.links.byID["link-1"] = &models.LinkRequest{
		ID: "link-1", SenderFamilyCode: "FAM002", SenderNodeUID: "Ravi-uid",
		ReceiverFamilyCode: "FAM001", ReceiverNodeUID: "Asha-uid",
		RelationshipType: models.RelationshipParent, ParentRole: &role,
		Status: models.LinkRequestPending, RequestedBy: "sec-admin",
	}

	link, err := f.service.Accept(context.Background(), "admin", "link-1")

	require.NoError(t, err)
	assert.Equal(t, models.LinkRequestAccepted, link.Status)
	assert.True(t, f.db.tx.committed)
	assert.ElementsMatch(t, []string{"FAM001", "FAM002"}, f.repairs.repaired)

	// Ravi's shadow card sits one generation above Asha as her parent
	shadow := f.store.findShadow("FAM001", "FAM002", "Ravi-uid")
	require.NotNil(t, shadow)
	assert.Equal(t, -1, shadow.Generation)
	asha, _ := f.store.GetByUID(context.Background(), "FAM001", "Asha-uid")
	assert.Contains(t, asha.ParentIDs(), shadow.PersonID)
	assert.Contains(t, shadow.ChildIDs(), asha.PersonID)

	// Asha's reciprocal shadow hangs under Ravi in his own family
	reciprocal := f.store.findShadow("FAM002", "FAM001", "Asha-uid")
	require.NotNil(t, reciprocal)
	assert.Equal(t, 1, reciprocal.Generation)
	ravi, _ := f.store.GetByUID(context.Background(), "FAM002", "Ravi-uid")
	assert.Contains(t, ravi.ChildIDs(), reciprocal.PersonID)
}

func TestAccept_SpouseLinkWiresBothFamilies(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	f.members.admins["admin:FAM001"] = true
	f.links.byID["link-1"] = &models.LinkRequest{
		ID: "link-1", SenderFamilyCode: "FAM002", SenderNodeUID: "Ravi-uid",
		ReceiverFamilyCode: "FAM001", ReceiverNodeUID: "Asha-uid",
		RelationshipType: models.RelationshipSpouse,
		Status:           models.LinkRequestPending, RequestedBy: "sec-admin",
	}

	_, err := f.service.Accept(context.Background(), "admin", "link-1")

	require.NoError(t, err)
	shadow := f.store.findShadow("FAM001", "FAM002", "Ravi-uid")
	require.NotNil(t, shadow)
	assert.Equal(t, 0, shadow.Generation)
	asha, _ := f.store.GetByUID(context.Background(), "FAM001", "Asha-uid")
	assert.Contains(t, asha.SpouseIDs(), shadow.PersonID)
	assert.Contains(t, shadow.SpouseIDs(), asha.PersonID)

	reciprocal := f.store.findShadow("FAM002", "FAM001", "Asha-uid")
	require.NotNil(t, reciprocal)
	ravi, _ := f.store.GetByUID(context.Background(), "FAM002", "Ravi-uid")
	assert.Contains(t, ravi.SpouseIDs(), reciprocal.PersonID)
}

func TestAccept_SiblingLinkCopiesParents(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	parent := node("FAM001", 2, "Prem", models.GenderMale, -1)
	asha := f.store.families["FAM001"][0]
	asha.Parents.Data = []int{2}
	parent.Children.Data = []int{1}
	f.store.families["FAM001"] = append(f.store.families["FAM001"], parent)
	f.members.admins["admin:FAM001"] = true
	f.links.byID["link-1"] = &models.LinkRequest{
		ID: "link-1", SenderFamilyCode: "FAM002", SenderNodeUID: "Ravi-uid",
		ReceiverFamilyCode: "FAM001", ReceiverNodeUID: "Asha-uid",
		RelationshipType: models.RelationshipSibling,
		Status:           models.LinkRequestPending, RequestedBy: "sec-admin",
	}

	_, err := f.service.Accept(context.Background(), "admin", "link-1")

	require.NoError(t, err)
	shadow := f.store.findShadow("FAM001", "FAM002", "Ravi-uid")
	require.NotNil(t, shadow)
	assert.Contains(t, asha.SiblingIDs(), shadow.PersonID)
	assert.Contains(t, shadow.SiblingIDs(), asha.PersonID)
	assert.Contains(t, shadow.ParentIDs(), 2)
	assert.Contains(t, parent.ChildIDs(), shadow.PersonID)
}

type fakePrefixes struct {
	invalidated []string
}

func (f *fakePrefixes) Invalidate(_ context.Context, userIDs ...string) {
	f.invalidated = append(f.invalidated, userIDs...)
}

func TestAccept_InvalidatesPrefixesForBothFamilies(t *testing.T) {
	f := newFixture()
	f.seedFamilies()
	f.members.admins["admin:FAM001"] = true
	f.members.memberIDs = map[string][]string{
		"FAM001": {"user-asha"},
		"FAM002": {"user-ravi"},
	}
	prefixes := &fakePrefixes{}
	f.service.WithPrefixCache(prefixes)
	f.links.byID["link-1"] = &models.LinkRequest{
		ID: "link-1", SenderFamilyCode: "FAM002", SenderNodeUID: "Ravi-uid",
		ReceiverFamilyCode: "FAM001", ReceiverNodeUID: "Asha-uid",
		RelationshipType: models.RelationshipSpouse,
		Status:           models.LinkRequestPending, RequestedBy: "sec-admin",
	}

	_, err := f.service.Accept(context.Background(), "admin", "link-1")

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-asha", "user-ravi"}, prefixes.invalidated)
}

func TestReject_SetsRejected(t *testing.T) {
	f := newFixture()
	f.links.byID["link-1"] = &models.LinkRequest{
		ID: "link-1", SenderFamilyCode: "FAM002", ReceiverFamilyCode: "FAM001",
		Status: models.LinkRequestPending, RequestedBy: "sec-admin",
	}
	f.members.admins["admin:FAM001"] = true

	link, err := f.service.Reject(context.Background(), "admin", "link-1")

	require.NoError(t, err)
	assert.Equal(t, models.LinkRequestRejected, link.Status)
}

func TestAccept_UnknownLinkNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service.Accept(context.Background(), "admin", "missing")

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
