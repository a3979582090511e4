package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	calls    int
	projects []Project
}

func (r *stubRepo) ListProjects(ctx context.Context) ([]Project, error) {
	r.calls++
	return r.projects, nil
}

func (r *stubRepo) GetProject(ctx context.Context, id int64) (Project, error) {
	for _, p := range r.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return Project{}, nil
}

func (r *stubRepo) GetMaterials(ctx context.Context, ids []int64) ([]ProductMaterial, error) {
	return nil, nil
}

func TestListProjectsCachesSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := &stubRepo{projects: []Project{{ID: 1, Name: "Kitchen Sofia", ClientName: "Ivanovi"}}}
	svc := NewService(repo, client, time.Minute, nil)
	ctx := context.Background()

	first, err := svc.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, repo.calls)

	second, err := svc.ListProjects(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.calls, "second read must come from the cache")
}

func TestInvalidateForcesReload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := &stubRepo{projects: []Project{{ID: 1}}}
	svc := NewService(repo, client, time.Minute, nil)
	ctx := context.Background()

	_, err := svc.ListProjects(ctx)
	require.NoError(t, err)

	svc.Invalidate(ctx)

	_, err = svc.ListProjects(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestListProjectsWithoutCache(t *testing.T) {
	repo := &stubRepo{projects: []Project{{ID: 7}}}
	svc := NewService(repo, nil, 0, nil)

	projects, err := svc.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, int64(7), projects[0].ID)
}

func TestMaterialStatusPending(t *testing.T) {
	require.True(t, MaterialNotOrdered.Pending())
	require.True(t, MaterialStatus("").Pending())
	require.False(t, MaterialOrdered.Pending())
	require.False(t, MaterialInStock.Pending())
	require.False(t, MaterialReceived.Pending())
}
