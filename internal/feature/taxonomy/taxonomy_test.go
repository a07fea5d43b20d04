package taxonomy_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csesa-backend/internal/core/cache"
	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/taxonomy"
	"csesa-backend/internal/repo"
	"csesa-backend/internal/testutil"
)

func TestGrantsFallBackToDefaults(t *testing.T) {
	db := testutil.NewDB(t)
	reg := taxonomy.NewRegistry(repo.NewRoleRepo(db), nil, 0)

	g, err := reg.Grants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CapabilitySet{ManageEvents: true, ManageProjects: true}, g[domain.RolePresident])
	assert.Equal(t, domain.CapabilitySet{ManageEvents: true, ManageProjects: true}, g[domain.RoleDomainHead])
	assert.False(t, g[domain.RoleCoordinator].Any())
	assert.False(t, g[domain.RoleAssociate].Any())
}

func TestUpdateOverridesDefaultAndInvalidatesCache(t *testing.T) {
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	reg := taxonomy.NewRegistry(repo.NewRoleRepo(db), c, time.Minute)
	ctx := context.Background()

	set, err := reg.For(ctx, domain.RoleCoordinator)
	require.NoError(t, err)
	assert.False(t, set.ManageEvents)
	assert.True(t, mr.Exists("taxonomy:roles"))

	_, err = reg.Update(ctx, domain.RoleCoordinator, domain.CapabilitySet{ManageEvents: true})
	require.NoError(t, err)
	assert.False(t, mr.Exists("taxonomy:roles"))

	set, err = reg.For(ctx, domain.RoleCoordinator)
	require.NoError(t, err)
	assert.True(t, set.ManageEvents)
	assert.False(t, set.ManageProjects)
}

func TestUpdateRejectsUnknownRole(t *testing.T) {
	db := testutil.NewDB(t)
	reg := taxonomy.NewRegistry(repo.NewRoleRepo(db), nil, 0)

	_, err := reg.Update(context.Background(), domain.RoleTag("JANITOR"), domain.CapabilitySet{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListIsTierOrdered(t *testing.T) {
	db := testutil.NewDB(t)
	reg := taxonomy.NewRegistry(repo.NewRoleRepo(db), nil, 0)

	roles, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, len(domain.AllRoles))
	for i, r := range roles {
		assert.Equal(t, domain.AllRoles[i], r.Tag)
		assert.Equal(t, r.Tag.DisplayName(), r.Name)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	roles, domains := repo.NewRoleRepo(db), repo.NewDomainRepo(db)
	ctx := context.Background()

	res, err := taxonomy.Seed(ctx, roles, domains)
	require.NoError(t, err)
	assert.Len(t, res.Roles, 4)
	assert.Len(t, res.Domains, 5)

	ds, err := domains.List(ctx)
	require.NoError(t, err)
	var slugs []string
	for _, d := range ds {
		slugs = append(slugs, d.Slug)
	}
	assert.Contains(t, slugs, "web-development")
	assert.Contains(t, slugs, "ai-ml")

	res, err = taxonomy.Seed(ctx, roles, domains)
	require.NoError(t, err)
	assert.Empty(t, res.Roles)
	assert.Empty(t, res.Domains)
}

func TestSeedKeepsCustomGrants(t *testing.T) {
	db := testutil.NewDB(t)
	roles := repo.NewRoleRepo(db)
	ctx := context.Background()
	require.NoError(t, roles.Upsert(ctx, &domain.Role{Tag: domain.RoleAssociate, CanManageProjects: true}))

	_, err := taxonomy.Seed(ctx, roles, repo.NewDomainRepo(db))
	require.NoError(t, err)

	r, err := roles.Get(ctx, domain.RoleAssociate)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.CanManageProjects)
}
