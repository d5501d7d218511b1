// Package testutil provides an in-memory stand-in for the escrow REST API and
// fixtures for tests that drive the real client against it.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/flexcrow/escrowctl/internal/app/domain/address"
	"github.com/flexcrow/escrowctl/internal/app/domain/file"
	"github.com/flexcrow/escrowctl/internal/app/domain/payment"
	"github.com/flexcrow/escrowctl/internal/app/domain/product"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/domain/withdrawal"
	"github.com/flexcrow/escrowctl/internal/httputil"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/internal/middleware"
	"github.com/flexcrow/escrowctl/internal/tokens"
)

// FakeSecret signs every token the fake issues.
var FakeSecret = []byte("escrow-fake-secret")

// FakeFrontendURL is where checkout sessions send the buyer back to.
const FakeFrontendURL = "https://app.escrow.test"

type storedUser struct {
	user.User
	hash []byte
}

type injected struct {
	status  int
	message string
}

// FakeAPI serves the escrow REST API from memory. Records are listed newest
// first, like the real service.
type FakeAPI struct {
	Server *httptest.Server

	mu           sync.Mutex
	clock        time.Time
	users        []*storedUser
	products     []*product.Product
	addresses    []*address.Address
	payments     []*payment.Payment
	withdrawals  []*withdrawal.Withdrawal
	transactions []*transaction.Transaction
	files        []*file.File
	failures     map[string]injected
	requests     []string
}

// NewFakeAPI starts a fake server that is closed when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		clock:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		failures: make(map[string]injected),
	}
	f.Server = httptest.NewServer(f.routes())
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the API root.
func (f *FakeAPI) URL() string { return f.Server.URL }

func (f *FakeAPI) routes() http.Handler {
	r := mux.NewRouter()
	log := logging.New("fake-api", "error", "text")
	r.Use(middleware.Tracing(log))
	r.Use(f.recordAndInject)
	r.Use(middleware.NewAuthMiddleware(FakeSecret, log, []string{"/users/login", "/users/signup"}).Handler)

	r.HandleFunc("/users/login", f.login).Methods(http.MethodPost)
	r.HandleFunc("/users/signup", f.signup).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify", f.verify).Methods(http.MethodGet)
	r.HandleFunc("/auth/data", f.me).Methods(http.MethodGet)

	r.HandleFunc("/users", f.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", f.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users/username", f.username).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", f.getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", f.updateUser).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}", f.deleteUser).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id}/password", f.changePassword).Methods(http.MethodPut)

	r.HandleFunc("/products", f.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/products", f.createProduct).Methods(http.MethodPost)
	r.HandleFunc("/products/remove/{id}", f.removeProduct).Methods(http.MethodPost)
	r.HandleFunc("/products/{id}", f.getProduct).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}", f.updateProduct).Methods(http.MethodPut)
	r.HandleFunc("/products/{id}", f.deleteProduct).Methods(http.MethodDelete)

	r.HandleFunc("/addresses", f.listAddresses).Methods(http.MethodGet)
	r.HandleFunc("/addresses", f.createAddress).Methods(http.MethodPost)
	r.HandleFunc("/addresses/remove/{id}", f.removeAddress).Methods(http.MethodPost)
	r.HandleFunc("/addresses/{id}", f.getAddress).Methods(http.MethodGet)
	r.HandleFunc("/addresses/{id}", f.updateAddress).Methods(http.MethodPut)
	r.HandleFunc("/addresses/{id}", f.deleteAddress).Methods(http.MethodDelete)

	r.HandleFunc("/payments", f.listPayments).Methods(http.MethodGet)
	r.HandleFunc("/payments", f.createPayment).Methods(http.MethodPost)
	r.HandleFunc("/payments/{id}", f.getPayment).Methods(http.MethodGet)
	r.HandleFunc("/payments/{id}", f.updatePayment).Methods(http.MethodPut)
	r.HandleFunc("/payments/{id}", f.deletePayment).Methods(http.MethodDelete)
	r.HandleFunc("/pay", f.checkout).Methods(http.MethodPost)

	r.HandleFunc("/withdrawals", f.listWithdrawals).Methods(http.MethodGet)
	r.HandleFunc("/withdrawals", f.createWithdrawal).Methods(http.MethodPost)
	r.HandleFunc("/withdrawals/{id}", f.getWithdrawal).Methods(http.MethodGet)
	r.HandleFunc("/withdrawals/{id}", f.updateWithdrawal).Methods(http.MethodPut)
	r.HandleFunc("/withdrawals/{id}", f.deleteWithdrawal).Methods(http.MethodDelete)

	r.HandleFunc("/transactions", f.listTransactions).Methods(http.MethodGet)
	r.HandleFunc("/transactions", f.createTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions/{id}", f.getTransaction).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}", f.updateTransaction).Methods(http.MethodPut)
	r.HandleFunc("/transactions/{id}", f.deleteTransaction).Methods(http.MethodDelete)

	r.HandleFunc("/upload", f.upload).Methods(http.MethodPost)
	r.HandleFunc("/files", f.listFiles).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}", f.getFile).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}", f.deleteFile).Methods(http.MethodDelete)
	return r
}

// recordAndInject logs each call and serves any failure queued with FailNext.
func (f *FakeAPI) recordAndInject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		f.requests = append(f.requests, key)
		fail, ok := f.failures[key]
		if ok {
			delete(f.failures, key)
		}
		f.mu.Unlock()
		if ok {
			httputil.WriteError(w, fail.status, fail.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FailNext makes the next request to method+path answer with status and
// the given error text.
func (f *FakeAPI) FailNext(method, path string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = injected{status: status, message: message}
}

// Requests returns "METHOD /path" for every call received so far.
func (f *FakeAPI) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Called reports whether method+path was requested.
func (f *FakeAPI) Called(method, path string) bool {
	for _, r := range f.Requests() {
		if r == method+" "+path {
			return true
		}
	}
	return false
}

// now advances the fake clock so records sort deterministically.
func (f *FakeAPI) now() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// TokenFor signs a day-long session token for u.
func TokenFor(u user.User) string {
	tok, err := tokens.Sign(FakeSecret, tokens.Claims{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		UID:       u.ID,
		UserType:  string(u.Type),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("sign fake token: %v", err))
	}
	return tok
}

// AddUser stores u with a bcrypt hash of password and returns it with its
// ID and token filled in.
func (f *FakeAPI) AddUser(u user.User, password string) user.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = newID()
	}
	if u.Type == "" {
		u.Type = user.RoleUser
	}
	if u.Status == 0 {
		u.Status = user.StatusActive
	}
	u.CreatedAt = f.now()
	u.UpdatedAt = u.CreatedAt
	u.Password = ""
	u.Token = TokenFor(u)
	f.users = append(f.users, &storedUser{User: u, hash: hash})
	return u
}

func (f *FakeAPI) AddProduct(p product.Product) product.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	if p.Status == 0 {
		p.Status = product.StatusActive
	}
	p.CreatedAt = f.now()
	f.products = append(f.products, &p)
	return p
}

func (f *FakeAPI) AddAddress(a address.Address) address.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Status == 0 {
		a.Status = address.StatusActive
	}
	a.CreatedAt = f.now()
	f.addresses = append(f.addresses, &a)
	return a
}

func (f *FakeAPI) AddPayment(p payment.Payment) payment.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = f.now()
	f.payments = append(f.payments, &p)
	return p
}

func (f *FakeAPI) AddFile(fl file.File) file.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fl.ID == "" {
		fl.ID = newID()
	}
	if fl.CloudURL == "" {
		fl.CloudURL = "https://cdn.escrow.test/" + fl.ID
	}
	fl.CreatedAt = f.now()
	f.files = append(f.files, &fl)
	return fl
}

func (f *FakeAPI) AddWithdrawal(w withdrawal.Withdrawal) withdrawal.Withdrawal {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w.ID == "" {
		w.ID = newID()
	}
	w.CreatedAt = f.now()
	f.withdrawals = append(f.withdrawals, &w)
	return w
}

func (f *FakeAPI) AddTransaction(tx transaction.Transaction) transaction.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx.ID == "" {
		tx.ID = newID()
	}
	if tx.Status == 0 {
		tx.Status = transaction.StatusPending
	}
	tx.CreatedAt = f.now()
	tx.UpdatedAt = tx.CreatedAt
	f.transactions = append(f.transactions, &tx)
	return tx
}

// Transaction returns a copy of the stored record.
func (f *FakeAPI) Transaction(id string) (transaction.Transaction, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx := f.findTransaction(id); tx != nil {
		return *tx, true
	}
	return transaction.Transaction{}, false
}

func (f *FakeAPI) User(id string) (user.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u := f.findUser(id); u != nil {
		return u.User, true
	}
	return user.User{}, false
}

func (f *FakeAPI) Payment(id string) (payment.Payment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.findPayment(id); p != nil {
		return *p, true
	}
	return payment.Payment{}, false
}

// Withdrawals returns every stored withdrawal, oldest first.
func (f *FakeAPI) Withdrawals() []withdrawal.Withdrawal {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]withdrawal.Withdrawal, 0, len(f.withdrawals))
	for _, w := range f.withdrawals {
		out = append(out, *w)
	}
	return out
}

// Marketplace is a ready-made cast: an admin, a seller with a physical and a
// digital product, and a buyer with an address.
type Marketplace struct {
	Admin    user.User
	Seller   user.User
	Buyer    user.User
	Physical product.Product
	Digital  product.Product
	Address  address.Address
}

// Seed fills the fake with a Marketplace. Every password is "secret123".
func (f *FakeAPI) Seed() Marketplace {
	var m Marketplace
	m.Admin = f.AddUser(user.User{Username: "admin01", Email: "admin@escrow.test", Type: user.RoleAdmin, FirstName: "Ada", LastName: "Admin"}, "secret123")
	m.Seller = f.AddUser(user.User{Username: "seller01", Email: "seller@escrow.test", FirstName: "Sam", LastName: "Seller", Phone: "0811111111", Balance: 50}, "secret123")
	m.Buyer = f.AddUser(user.User{Username: "buyer01", Email: "buyer@escrow.test", FirstName: "Bea", LastName: "Buyer", Phone: "0822222222", Balance: 1000}, "secret123")
	img := f.AddFile(file.File{OriginalName: "camera.jpg", FileType: "image/jpeg", Size: 2048})
	m.Physical = f.AddProduct(product.Product{UserID: m.Seller.ID, Name: "Film camera", Type: product.TypePhysical, Price: 150, ImageIDs: []string{img.ID}})
	m.Digital = f.AddProduct(product.Product{UserID: m.Seller.ID, Name: "Preset pack", Type: product.TypeDigital, Price: 40})
	m.Address = f.AddAddress(address.Address{UserID: m.Buyer.ID, Name: "Home", Type: 1, FullName: "Bea Buyer", Phone: "0822222222", Address1: "1 Main Rd", Subdistrict: "Silom", District: "Bang Rak", Province: "Bangkok", Country: "Thailand", PostalCode: "10500"})
	return m
}
