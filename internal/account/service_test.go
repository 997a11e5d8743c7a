package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/repo"
	balance "github.com/ovaphlow/pitchfork/service-account-admin/internal/balance/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/credential"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/response"
)

type stubPolicy struct {
	allowed   map[string]bool
	balance   balance.Config
	domainErr error
}

func (p stubPolicy) IsEmailDomainAllowed(_ context.Context, email string) (bool, error) {
	if p.domainErr != nil {
		return false, p.domainErr
	}
	if p.allowed == nil {
		return true, nil
	}
	return p.allowed[email[strings.LastIndex(email, "@")+1:]], nil
}

func (p stubPolicy) GetBalanceConfig(context.Context) (*balance.Config, error) {
	cfg := p.balance
	return &cfg, nil
}

// blindStore never finds duplicates up front, so only the store's own
// uniqueness check can catch them.
type blindStore struct{ *repo.MemoryRepo }

func (blindStore) FindByEmail(context.Context, string) (*entity.Account, error) {
	return nil, repo.ErrNotFound
}

func (blindStore) FindByUsername(context.Context, string) (*entity.Account, error) {
	return nil, repo.ErrNotFound
}

type spyStore struct {
	*repo.MemoryRepo
	updates   atomic.Int32
	deleteNop bool
}

func (s *spyStore) UpdatePassword(ctx context.Context, id, hash string) error {
	s.updates.Add(1)
	return s.MemoryRepo.UpdatePassword(ctx, id, hash)
}

func (s *spyStore) DeleteByID(ctx context.Context, id string) (int64, error) {
	if s.deleteNop {
		return 0, nil
	}
	return s.MemoryRepo.DeleteByID(ctx, id)
}

type brokenHasher struct{}

func (brokenHasher) Hash(string) (string, error) { return "", errors.New("entropy exhausted") }
func (brokenHasher) Verify(string, string) bool  { return false }

func newTestService(t *testing.T, store Store, policy Policy) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	svc := NewService(store, policy, credential.BcryptHasher{Cost: bcrypt.MinCost}, zap.New(core).Sugar())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	svc.now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }
	return svc, logs
}

func TestCreate_GeneratesPassword(t *testing.T) {
	store := repo.NewMemoryRepo()
	svc, logs := newTestService(t, store, stubPolicy{})
	ctx := context.Background()

	res := svc.Create(ctx, CreateInput{Email: "a@b.com", Name: "A", Username: "a1"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "User created successfully", res.Message)
	require.NotNil(t, res.User)
	require.NotNil(t, res.GeneratedPassword)

	plain, ok := res.GeneratedPassword.Reveal()
	require.True(t, ok)
	assert.Len(t, plain, credential.PasswordLength)

	stored, err := store.FindByID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Equal(t, entity.RoleUser, stored.Role)
	assert.Equal(t, entity.ProviderLocal, stored.Provider)
	require.NotNil(t, stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*stored.PasswordHash), []byte(plain)))

	for _, e := range logs.All() {
		assert.NotContains(t, fmt.Sprint(e.ContextMap()), plain)
	}
}

func TestCreate_SuppliedPasswordNotReturned(t *testing.T) {
	svc, _ := newTestService(t, repo.NewMemoryRepo(), stubPolicy{})

	res := svc.Create(context.Background(), CreateInput{Email: " Mixed@Example.COM ", Name: " Ann ", Username: " ann ", Password: "s3cret-pass"})
	require.True(t, res.Success)
	assert.Nil(t, res.GeneratedPassword)
	assert.Equal(t, "mixed@example.com", res.User.Email)
	assert.Equal(t, "Ann", res.User.Name)
	assert.Equal(t, "ann", res.User.Username)

	acct, err := svc.Authenticate(context.Background(), "MIXED@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, acct.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t, repo.NewMemoryRepo(), stubPolicy{})

	cases := []struct {
		name string
		in   CreateInput
		code response.ErrorCode
		msg  string
	}{
		{"missing email", CreateInput{Name: "A", Username: "a"}, response.CodeInvalidInput, "Email, name, and username are required"},
		{"blank name", CreateInput{Email: "a@b.com", Name: "  ", Username: "a"}, response.CodeInvalidInput, "Email, name, and username are required"},
		{"missing username", CreateInput{Email: "a@b.com", Name: "A"}, response.CodeInvalidInput, "Email, name, and username are required"},
		{"no tld", CreateInput{Email: "a@b", Name: "A", Username: "a"}, response.CodeInvalidEmail, "Invalid email format"},
		{"space", CreateInput{Email: "a b@c.com", Name: "A", Username: "a"}, response.CodeInvalidEmail, "Invalid email format"},
		{"no at", CreateInput{Email: "ab.com", Name: "A", Username: "a"}, response.CodeInvalidEmail, "Invalid email format"},
		{"long password", CreateInput{Email: "a@b.com", Name: "A", Username: "a", Password: strings.Repeat("x", 73)}, response.CodeInvalidInput, "Password must be at most 72 bytes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := svc.Create(context.Background(), tc.in)
			assert.False(t, res.Success)
			assert.Equal(t, tc.code, res.Error)
			assert.Equal(t, tc.msg, res.Message)
		})
	}
}

func TestCreate_Duplicates(t *testing.T) {
	svc, _ := newTestService(t, repo.NewMemoryRepo(), stubPolicy{})
	ctx := context.Background()

	require.True(t, svc.Create(ctx, CreateInput{Email: "a@b.com", Name: "A", Username: "a1"}).Success)

	res := svc.Create(ctx, CreateInput{Email: "A@B.com", Name: "A", Username: "other"})
	assert.Equal(t, response.CodeUserExists, res.Error)
	assert.Equal(t, "User already exists", res.Message)

	res = svc.Create(ctx, CreateInput{Email: "new@b.com", Name: "A", Username: "a1"})
	assert.Equal(t, response.CodeUserExists, res.Error)
	assert.Equal(t, "Username already exists", res.Message)
}

func TestCreate_UniquenessBeforePasswordLength(t *testing.T) {
	svc, _ := newTestService(t, repo.NewMemoryRepo(), stubPolicy{allowed: map[string]bool{"corp.io": true}})
	ctx := context.Background()
	require.True(t, svc.Create(ctx, CreateInput{Email: "a@corp.io", Name: "A", Username: "a"}).Success)

	long := strings.Repeat("x", 73)
	res := svc.Create(ctx, CreateInput{Email: "a@corp.io", Name: "A", Username: "b", Password: long})
	assert.Equal(t, response.CodeUserExists, res.Error)

	res = svc.Create(ctx, CreateInput{Email: "b@blocked.com", Name: "B", Username: "b", Password: long})
	assert.Equal(t, response.CodeInvalidEmail, res.Error)

	res = svc.Create(ctx, CreateInput{Email: "b@corp.io", Name: "B", Username: "b", Password: long})
	assert.Equal(t, response.CodeInvalidInput, res.Error)
	assert.Equal(t, "Password must be at most 72 bytes", res.Message)
}

func TestCreate_UniquenessBeforeDomainPolicy(t *testing.T) {
	svc, _ := newTestService(t, repo.NewMemoryRepo(), stubPolicy{allowed: map[string]bool{"corp.io": true}})
	ctx := context.Background()

	res := svc.Create(ctx, CreateInput{Email: "x@blocked.com", Name: "X", Username: "x"})
	assert.Equal(t, response.CodeInvalidEmail, res.Error)
	assert.Equal(t, "Email domain not allowed", res.Message)

	// Seed a blocked-domain account through the admin path.
	require.True(t, svc.Bootstrap(ctx, CreateInput{Email: "x@blocked.com", Name: "X", Username: "x"}).Success)

	res = svc.Create(ctx, CreateInput{Email: "x@blocked.com", Name: "X", Username: "y"})
	assert.Equal(t, response.CodeUserExists, res.Error)
}

func TestCreate_StoreDuplicateIsUserExists(t *testing.T) {
	svc, _ := newTestService(t, blindStore{repo.NewMemoryRepo()}, stubPolicy{})
	ctx := context.Background()

	require.True(t, svc.Create(ctx, CreateInput{Email: "a@b.com", Name: "A", Username: "a1"}).Success)
	res := svc.Create(ctx, CreateInput{Email: "a@b.com", Name: "A", Username: "a2"})
	assert.Equal(t, response.CodeUserExists, res.Error)
}

func TestCreate_CollaboratorFaults(t *testing.T) {
	ctx := context.Background()
	in := CreateInput{Email: "a@b.com", Name: "A", Username: "a1"}

	svc, logs := newTestService(t, repo.NewMemoryRepo(), stubPolicy{domainErr: errors.New("settings table missing")})
	res := svc.Create(ctx, in)
	assert.Equal(t, response.CodeInternal, res.Error)
	assert.Equal(t, "Something went wrong", res.Message)
	assert.Equal(t, 1, logs.FilterMessage("check email domain failed").Len())

	store := repo.NewMemoryRepo()
	svc = NewService(store, stubPolicy{}, brokenHasher{}, nil)
	res = svc.Create(ctx, in)
	assert.Equal(t, response.CodeInternal, res.Error)
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	svc, _ = newTestService(t, repo.NewMemoryRepo(), stubPolicy{})
	svc.generate = func() (string, error) { return "", errors.New("rand failed") }
	res = svc.Create(ctx, in)
	assert.Equal(t, response.CodeInternal, res.Error)
}

func TestCreate_StartingBalance(t *testing.T) {
	store := repo.NewMemoryRepo()
	svc, _ := newTestService(t, store, stubPolicy{balance: balance.Config{Enabled: true, StartBalance: 20000}})

	res := svc.Create(context.Background(), CreateInput{Email: "a@b.com", Name: "A", Username: "a1"})
	require.True(t, res.Success)

	b, ok := store.Balance(res.User.ID)
	require.True(t, ok)
	assert.Equal(t, int64(20000), b.TokenCredits)
}

func TestNormalizePage(t *testing.T) {
	cases := []struct{ page, limit, wantPage, wantLimit int }{
		{0, 0, 1, 20},
		{-3, 0, 1, 20},
		{2, 50, 2, 50},
		{1, 500, 1, 100},
		{1, -5, 1, 1},
		{7, 1, 7, 1},
		{math.MaxInt, 100, maxPage, 100},
	}
	for _, tc := range cases {
		p, l := NormalizePage(tc.page, tc.limit)
		assert.Equal(t, tc.wantPage, p, "page %d", tc.page)
		assert.Equal(t, tc.wantLimit, l, "limit %d", tc.limit)
	}
}

func TestList_Pagination(t *testing.T) {
	svc, _ := newTestService(t, repo.NewMemoryRepo(), stubPolicy{})
	ctx := context.Background()
	for i := 0; i < 45; i++ {
		res := svc.Create(ctx, CreateInput{
			Email: fmt.Sprintf("u%d@b.com", i), Name: "U", Username: fmt.Sprintf("u%d", i), Password: "pw",
		})
		require.True(t, res.Success)
	}

	res := svc.List(ctx, 1, 20)
	require.True(t, res.Success)
	assert.Len(t, res.Users, 20)
	assert.Equal(t, &Pagination{CurrentPage: 1, TotalPages: 3, TotalUsers: 45, HasNext: true, HasPrev: false}, res.Pagination)
	assert.Equal(t, "u44", res.Users[0].Username)

	res = svc.List(ctx, 3, 20)
	require.True(t, res.Success)
	assert.Len(t, res.Users, 5)
	assert.Equal(t, &Pagination{CurrentPage: 3, TotalPages: 3, TotalUsers: 45, HasNext: false, HasPrev: true}, res.Pagination)
	assert.Equal(t, "u0", res.Users[4].Username)

	res = svc.List(ctx, 9, 20)
	assert.Empty(t, res.Users)
	assert.False(t, res.Pagination.HasNext)
}

func TestList_HugePageIsEmpty(t *testing.T) {
	store := repo.NewMemoryRepo()
	svc, _ := newTestService(t, store, stubPolicy{})
	ctx := context.Background()
	require.True(t, svc.Create(ctx, CreateInput{Email: "a@b.com", Name: "A", Username: "a", Password: "pw"}).Success)

	for _, page := range []int{maxPage + 1, math.MaxInt} {
		res := svc.List(ctx, page, MaxLimit)
		require.True(t, res.Success, "page %d", page)
		assert.Empty(t, res.Users)
		assert.Equal(t, maxPage, res.Pagination.CurrentPage)
		assert.Equal(t, int64(1), res.Pagination.TotalUsers)
		assert.False(t, res.Pagination.HasNext)
		assert.True(t, res.Pagination.HasPrev)
	}
}

func TestList_Empty(t *testing.T) {
	svc, _ := newTestService(t, repo.NewMemoryRepo(), stubPolicy{})

	res := svc.List(context.Background(), 0, 0)
	require.True(t, res.Success)
	assert.Equal(t, &Pagination{CurrentPage: 1}, res.Pagination)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"users":[],"pagination":{"currentPage":1,"totalPages":0,"totalUsers":0,"hasNext":false,"hasPrev":false}}`, string(b))
}

func TestUpdatePassword(t *testing.T) {
	store := &spyStore{MemoryRepo: repo.NewMemoryRepo()}
	svc, _ := newTestService(t, store, stubPolicy{})
	ctx := context.Background()

	created := svc.Create(ctx, CreateInput{Email: "a@b.com", Name: "A", Username: "a1", Password: "first"})
	require.True(t, created.Success)

	res := svc.UpdatePassword(ctx, "missing", "")
	assert.Equal(t, response.CodeUserNotFound, res.Error)
	assert.Equal(t, "User not found", res.Message)
	assert.Zero(t, store.updates.Load())

	res = svc.UpdatePassword(ctx, created.User.ID, "second")
	require.True(t, res.Success)
	assert.Equal(t, "Password updated successfully", res.Message)
	assert.Nil(t, res.GeneratedPassword)
	_, err := svc.Authenticate(ctx, "a1", "second")
	assert.NoError(t, err)
	_, err = svc.Authenticate(ctx, "a1", "first")
	assert.ErrorIs(t, err, ErrBadCredentials)

	res = svc.UpdatePassword(ctx, created.User.ID, "")
	require.True(t, res.Success)
	require.NotNil(t, res.GeneratedPassword)
	plain, _ := res.GeneratedPassword.Reveal()
	assert.Len(t, plain, credential.PasswordLength)
	_, err = svc.Authenticate(ctx, "a@b.com", plain)
	assert.NoError(t, err)

	acct, err := store.FindByID(ctx, created.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", acct.Email)
	assert.Equal(t, entity.RoleUser, acct.Role)
}

func TestDelete(t *testing.T) {
	store := &spyStore{MemoryRepo: repo.NewMemoryRepo()}
	svc, _ := newTestService(t, store, stubPolicy{})
	ctx := context.Background()

	user := svc.Create(ctx, CreateInput{Email: "u@b.com", Name: "U", Username: "u"})
	admin := svc.Bootstrap(ctx, CreateInput{Email: "root@b.com", Name: "Root", Username: "root"})
	require.True(t, user.Success)
	require.True(t, admin.Success)

	res := svc.Delete(ctx, "missing")
	assert.Equal(t, response.CodeUserNotFound, res.Error)

	res = svc.Delete(ctx, admin.User.ID)
	assert.Equal(t, response.CodeAdminDeleteForbidden, res.Error)
	assert.Equal(t, "Cannot delete admin user", res.Message)
	_, err := store.FindByID(ctx, admin.User.ID)
	assert.NoError(t, err)

	store.deleteNop = true
	res = svc.Delete(ctx, user.User.ID)
	assert.Equal(t, response.CodeDeleteFailed, res.Error)
	assert.Equal(t, "Failed to delete user", res.Message)

	store.deleteNop = false
	res = svc.Delete(ctx, user.User.ID)
	require.True(t, res.Success)
	assert.Equal(t, "User deleted successfully", res.Message)
	_, err = store.FindByID(ctx, user.User.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t, repo.NewMemoryRepo(), stubPolicy{})
	ctx := context.Background()
	require.True(t, svc.Create(ctx, CreateInput{Email: "a@b.com", Name: "A", Username: "a1", Password: "pw"}).Success)

	for _, tc := range []struct{ id, pw string }{
		{"", "pw"},
		{"a1", ""},
		{"a1", "nope"},
		{"ghost", "pw"},
		{"ghost@b.com", "pw"},
	} {
		_, err := svc.Authenticate(ctx, tc.id, tc.pw)
		assert.ErrorIs(t, err, ErrBadCredentials, "%q", tc.id)
	}
}

func TestResult_GeneratedPasswordDisclosedOnce(t *testing.T) {
	res := &Result{Success: true, Message: "ok", GeneratedPassword: NewOneTimeSecret("abc123defg")}

	assert.NotContains(t, fmt.Sprintf("%v %+v %#v", res, res, res.GeneratedPassword), "abc123defg")

	first, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"ok","generatedPassword":"abc123defg"}`, string(first))

	second, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"ok"}`, string(second))
}
