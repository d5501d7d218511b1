package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

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
	"github.com/flexcrow/escrowctl/internal/middleware"
)

const notAuthorized = "Unauthorized to access this resource"

func caller(r *http.Request) (string, bool) {
	return middleware.GetUserID(r.Context()), middleware.GetUserRole(r.Context()) == string(user.RoleAdmin)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// paginate slices newest-first items the way the API does and wraps them
// in {total_count, <key>}.
func paginate[T any](r *http.Request, items []*T, key string) map[string]interface{} {
	q := r.URL.Query()
	perPage, err := strconv.Atoi(q.Get("recordPerPage"))
	if err != nil || perPage < 1 {
		perPage = 10
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	start, err := strconv.Atoi(q.Get("startIndex"))
	if err != nil || start < 0 {
		start = (page - 1) * perPage
	}

	ordered := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		ordered = append(ordered, *items[i])
	}
	end := start + perPage
	if start > len(ordered) {
		start = len(ordered)
	}
	if end > len(ordered) {
		end = len(ordered)
	}
	return map[string]interface{}{
		"total_count": len(ordered),
		key:           ordered[start:end],
	}
}

// ownerFilter resolves the user_id / customer_id list filter. Non-admins may
// only use "current".
func ownerFilter(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	uid, admin := caller(r)
	v := r.URL.Query().Get(param)
	switch {
	case v == "current":
		return uid, true
	case v != "" && admin:
		return v, true
	case v != "":
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return "", false
	}
	return "", true
}

// ---- lookups (callers hold f.mu) ----

func (f *FakeAPI) findUser(id string) *storedUser {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (f *FakeAPI) findUserBy(match func(*storedUser) bool) *storedUser {
	for _, u := range f.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (f *FakeAPI) findProduct(id string) *product.Product {
	for _, p := range f.products {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *FakeAPI) findAddress(id string) *address.Address {
	for _, a := range f.addresses {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (f *FakeAPI) findPayment(id string) *payment.Payment {
	for _, p := range f.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *FakeAPI) findWithdrawal(id string) *withdrawal.Withdrawal {
	for _, w := range f.withdrawals {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func (f *FakeAPI) findTransaction(id string) *transaction.Transaction {
	for _, t := range f.transactions {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (f *FakeAPI) findFile(id string) *file.File {
	for _, fl := range f.files {
		if fl.ID == id {
			return fl
		}
	}
	return nil
}

// resolveUsername maps a username to a user ID.
func (f *FakeAPI) resolveUsername(name string) string {
	if u := f.findUserBy(func(u *storedUser) bool { return u.Username == name }); u != nil {
		return u.ID
	}
	return ""
}

// ---- auth & users ----

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &creds) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.findUserBy(func(u *storedUser) bool { return u.Email == creds.Email })
	if u == nil {
		httputil.WriteError(w, http.StatusInternalServerError, "login or passowrd is incorrect")
		return
	}
	if bcrypt.CompareHashAndPassword(u.hash, []byte(creds.Password)) != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "login or passowrd is incorrect")
		return
	}
	u.Token = TokenFor(u.User)
	httputil.WriteJSON(w, http.StatusOK, u.User)
}

type userBody struct {
	Username  *string    `json:"username"`
	Email     *string    `json:"email"`
	Password  *string    `json:"password"`
	Type      *user.Role `json:"user_type"`
	Status    *int       `json:"status"`
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Phone     *string    `json:"phone"`
	Balance   *float64   `json:"balance"`
	ImageID   *string    `json:"image_id"`
	AddressID *string    `json:"address_id"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (f *FakeAPI) register(w http.ResponseWriter, body userBody, forceMember bool) {
	if str(body.Username) == "" || str(body.Email) == "" || len(str(body.Password)) < 6 {
		httputil.WriteError(w, http.StatusBadRequest, "Key: 'User.Password' Error:Field validation for 'Password' failed on the 'min' tag")
		return
	}
	f.mu.Lock()
	if f.findUserBy(func(u *storedUser) bool { return u.Email == *body.Email }) != nil {
		f.mu.Unlock()
		httputil.WriteError(w, http.StatusBadRequest, "email_error")
		return
	}
	if f.findUserBy(func(u *storedUser) bool { return u.Username == *body.Username }) != nil {
		f.mu.Unlock()
		httputil.WriteError(w, http.StatusBadRequest, "username_error")
		return
	}
	f.mu.Unlock()

	u := user.User{
		Username:  *body.Username,
		Email:     *body.Email,
		FirstName: str(body.FirstName),
		LastName:  str(body.LastName),
		Phone:     str(body.Phone),
		Type:      user.RoleUser,
	}
	if !forceMember && body.Type != nil {
		u.Type = *body.Type
	}
	if body.Status != nil {
		u.Status = *body.Status
	}
	created := f.AddUser(u, *body.Password)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"InsertedID": created.ID})
}

func (f *FakeAPI) signup(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if decode(w, r, &body) {
		f.register(w, body, true)
	}
}

func (f *FakeAPI) createUser(w http.ResponseWriter, r *http.Request) {
	if _, admin := caller(r); !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	var body userBody
	if decode(w, r, &body) {
		f.register(w, body, false)
	}
}

func (f *FakeAPI) verify(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"user_type": middleware.GetUserRole(r.Context())})
}

func (f *FakeAPI) me(w http.ResponseWriter, r *http.Request) {
	uid, _ := caller(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.findUser(uid)
	if u == nil {
		httputil.WriteError(w, http.StatusInternalServerError, "error occurred while fetching user data")
		return
	}
	out := u.User
	out.Token = ""
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, admin := caller(r); !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]*user.User, 0, len(f.users))
	for _, u := range f.users {
		cp := u.User
		cp.Token = ""
		items = append(items, &cp)
	}
	httputil.WriteJSON(w, http.StatusOK, paginate(r, items, "user_items"))
}

func (f *FakeAPI) getUser(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	id := mux.Vars(r)["id"]
	if !admin && id != uid {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.findUser(id)
	if u == nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u.User)
}

func (f *FakeAPI) username(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.findUser(r.URL.Query().Get("user_id"))
	if u == nil {
		httputil.WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Type:      u.Type,
		Phone:     u.Phone,
		Balance:   u.Balance,
		ImageID:   u.ImageID,
	})
}

func (f *FakeAPI) updateUser(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	id := mux.Vars(r)["id"]
	var body userBody
	if !decode(w, r, &body) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.findUser(id)
	if u == nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	viaTransaction := r.URL.Query().Get("transaction") == "true"
	if !admin && ((u.ID != uid && !viaTransaction) || u.Status != user.StatusActive) {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to update this user")
		return
	}
	if body.Email != nil && *body.Email != u.Email {
		if f.findUserBy(func(o *storedUser) bool { return o.Email == *body.Email }) != nil {
			httputil.WriteError(w, http.StatusBadRequest, "email_error")
			return
		}
		u.Email = *body.Email
	}
	if body.Username != nil && *body.Username != u.Username {
		if f.findUserBy(func(o *storedUser) bool { return o.Username == *body.Username }) != nil {
			httputil.WriteError(w, http.StatusBadRequest, "username_error")
			return
		}
		u.Username = *body.Username
	}
	if body.FirstName != nil {
		u.FirstName = *body.FirstName
	}
	if body.LastName != nil {
		u.LastName = *body.LastName
	}
	if body.Phone != nil {
		u.Phone = *body.Phone
	}
	if body.Balance != nil {
		u.Balance = *body.Balance
	}
	if body.ImageID != nil {
		u.ImageID = *body.ImageID
	}
	if body.AddressID != nil {
		u.AddressID = *body.AddressID
	}
	if admin {
		if body.Type != nil {
			u.Type = *body.Type
		}
		if body.Status != nil {
			u.Status = *body.Status
		}
	}
	u.UpdatedAt = f.now()
	httputil.WriteJSON(w, http.StatusOK, 1)
}

func (f *FakeAPI) deleteUser(w http.ResponseWriter, r *http.Request) {
	if _, admin := caller(r); !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	id := mux.Vars(r)["id"]
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if u.ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"DeletedCount": 1})
}

func (f *FakeAPI) changePassword(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	id := mux.Vars(r)["id"]
	var body struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.findUser(id)
	if u == nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if !admin && u.ID != uid {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to update this user's password")
		return
	}
	if len(body.New) < 6 {
		httputil.WriteError(w, http.StatusBadRequest, "Key: 'PasswordUpdate.NewPassword' Error:Field validation for 'NewPassword' failed on the 'min' tag")
		return
	}
	if bcrypt.CompareHashAndPassword(u.hash, []byte(body.Current)) != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_password")
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(body.New), bcrypt.MinCost)
	u.hash = hash
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// ---- products ----

func (f *FakeAPI) listProducts(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFilter(w, r, "user_id")
	if !ok {
		return
	}
	if _, admin := caller(r); owner == "" && !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*product.Product
	for _, p := range f.products {
		if owner == "" || p.UserID == owner {
			items = append(items, p)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, paginate(r, items, "product_items"))
}

func (f *FakeAPI) getProduct(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.findProduct(mux.Vars(r)["id"])
	if p == nil {
		httputil.WriteError(w, http.StatusNotFound, "product not found")
		return
	}
	via := r.URL.Query().Get("transaction") == "true"
	if !admin && ((p.UserID != uid && !via) || p.Status != product.StatusActive) {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to view this product")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

type productBody struct {
	UserID      string       `json:"user_id"`
	Name        string       `json:"name"`
	Status      int          `json:"status"`
	Type        product.Type `json:"type"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	ImageIDs    []string     `json:"image_id"`
	VideoID     string       `json:"video_id"`
}

func (f *FakeAPI) createProduct(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	var body productBody
	if !decode(w, r, &body) {
		return
	}
	if body.Name == "" || body.Price <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "Key: 'Product.Name' Error:Field validation for 'Name' failed on the 'required' tag")
		return
	}
	owner := uid
	if admin && body.UserID != "" {
		f.mu.Lock()
		owner = f.resolveUsername(body.UserID)
		f.mu.Unlock()
		if owner == "" {
			httputil.WriteError(w, http.StatusBadRequest, "user not found")
			return
		}
	}
	p := f.AddProduct(product.Product{
		UserID:      owner,
		Name:        body.Name,
		Status:      body.Status,
		Type:        body.Type,
		Description: body.Description,
		Price:       body.Price,
		ImageIDs:    body.ImageIDs,
		VideoID:     body.VideoID,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"InsertedID": p.ID})
}

func (f *FakeAPI) updateProduct(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	var body productBody
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.findProduct(mux.Vars(r)["id"])
	if p == nil {
		httputil.WriteError(w, http.StatusNotFound, "product not found")
		return
	}
	if !admin && p.UserID != uid {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to update this product")
		return
	}
	p.Name, p.Type, p.Description, p.Price = body.Name, body.Type, body.Description, body.Price
	p.ImageIDs, p.VideoID = body.ImageIDs, body.VideoID
	if body.Status != 0 {
		p.Status = body.Status
	}
	p.UpdatedAt = f.now()
	httputil.WriteJSON(w, http.StatusOK, 1)
}

func (f *FakeAPI) removeProduct(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.findProduct(mux.Vars(r)["id"])
	if p == nil {
		httputil.WriteError(w, http.StatusNotFound, "product not found")
		return
	}
	if !admin && p.UserID != uid {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to remove this product")
		return
	}
	p.Status = product.StatusRemoved
	httputil.WriteJSON(w, http.StatusOK, 1)
}

func (f *FakeAPI) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if _, admin := caller(r); !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	id := mux.Vars(r)["id"]
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.products {
		if p.ID == id {
			f.products = append(f.products[:i], f.products[i+1:]...)
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"DeletedCount": 1})
}

// ---- addresses ----

func (f *FakeAPI) listAddresses(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFilter(w, r, "user_id")
	if !ok {
		return
	}
	if _, admin := caller(r); owner == "" && !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*address.Address
	for _, a := range f.addresses {
		if owner == "" || a.UserID == owner {
			items = append(items, a)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, paginate(r, items, "address_items"))
}

func (f *FakeAPI) getAddress(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.findAddress(mux.Vars(r)["id"])
	if a == nil {
		httputil.WriteError(w, http.StatusNotFound, "address not found")
		return
	}
	via := r.URL.Query().Get("transaction") == "true"
	if !admin && a.UserID != uid && !via {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to view this address")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (f *FakeAPI) createAddress(w http.ResponseWriter, r *http.Request) {
	uid, _ := caller(r)
	var a address.Address
	if !decode(w, r, &a) {
		return
	}
	if a.FullName == "" || a.Address1 == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Key: 'Address.Full_name' Error:Field validation for 'Full_name' failed on the 'required' tag")
		return
	}
	a.ID = ""
	a.UserID = uid
	created := f.AddAddress(a)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"InsertedID": created.ID})
}

func (f *FakeAPI) updateAddress(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	var body address.Address
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.findAddress(mux.Vars(r)["id"])
	if a == nil {
		httputil.WriteError(w, http.StatusNotFound, "address not found")
		return
	}
	if !admin && a.UserID != uid {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to update this address")
		return
	}
	body.ID, body.UserID, body.CreatedAt = a.ID, a.UserID, a.CreatedAt
	if body.Status == 0 {
		body.Status = a.Status
	}
	body.UpdatedAt = f.now()
	*a = body
	httputil.WriteJSON(w, http.StatusOK, 1)
}

func (f *FakeAPI) removeAddress(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.findAddress(mux.Vars(r)["id"])
	if a == nil {
		httputil.WriteError(w, http.StatusNotFound, "address not found")
		return
	}
	if !admin && a.UserID != uid {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to remove this address")
		return
	}
	a.Status = address.StatusRemoved
	httputil.WriteJSON(w, http.StatusOK, 1)
}

func (f *FakeAPI) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if _, admin := caller(r); !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	id := mux.Vars(r)["id"]
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.addresses {
		if a.ID == id {
			f.addresses = append(f.addresses[:i], f.addresses[i+1:]...)
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"DeletedCount": 1})
}

// ---- payments ----

func (f *FakeAPI) listPayments(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFilter(w, r, "user_id")
	if !ok {
		return
	}
	if _, admin := caller(r); owner == "" && !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*payment.Payment
	for _, p := range f.payments {
		if owner == "" || p.UserID == owner {
			items = append(items, p)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, paginate(r, items, "payment_items"))
}

func (f *FakeAPI) getPayment(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.findPayment(mux.Vars(r)["id"])
	if p == nil {
		httputil.WriteError(w, http.StatusNotFound, "payment not found")
		return
	}
	if !admin && p.UserID != uid {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to view this payment")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (f *FakeAPI) createPayment(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	var body struct {
		UserID string         `json:"user_id"`
		Status payment.Status `json:"status"`
		Amount float64        `json:"amount"`
		Method string         `json:"method"`
	}
	if !decode(w, r, &body) {
		return
	}
	owner := uid
	if admin && body.UserID != "" {
		f.mu.Lock()
		owner = f.resolveUsername(body.UserID)
		f.mu.Unlock()
		if owner == "" {
			httputil.WriteError(w, http.StatusBadRequest, "user not found")
			return
		}
	}
	if body.Status == 0 {
		body.Status = payment.StatusPending
	}
	p := f.AddPayment(payment.Payment{UserID: owner, Status: body.Status, Amount: body.Amount, Method: body.Method})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"InsertedID": p.ID})
}

func (f *FakeAPI) updatePayment(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	var body struct {
		Status *payment.Status `json:"status"`
		Amount *float64        `json:"amount"`
		Method *string         `json:"method"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.findPayment(mux.Vars(r)["id"])
	if p == nil {
		httputil.WriteError(w, http.StatusNotFound, "payment not found")
		return
	}
	if !admin && p.UserID != uid {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to update this payment")
		return
	}
	if body.Status != nil {
		p.Status = *body.Status
	}
	if body.Amount != nil {
		p.Amount = *body.Amount
	}
	if body.Method != nil {
		p.Method = *body.Method
	}
	p.UpdatedAt = f.now()
	httputil.WriteJSON(w, http.StatusOK, 1)
}

func (f *FakeAPI) deletePayment(w http.ResponseWriter, r *http.Request) {
	if _, admin := caller(r); !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	id := mux.Vars(r)["id"]
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.payments {
		if p.ID == id {
			f.payments = append(f.payments[:i], f.payments[i+1:]...)
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"DeletedCount": 1})
}

// checkout records a pending payment and hands back a hosted page URL. The
// success and cancel return URLs are reachable through CheckoutReturn.
func (f *FakeAPI) checkout(w http.ResponseWriter, r *http.Request) {
	uid, _ := caller(r)
	var req payment.CheckoutRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "amount must be greater than 0")
		return
	}
	p := f.AddPayment(payment.Payment{UserID: uid, Status: payment.StatusPending, Amount: req.Amount, Method: req.Method})
	txID := r.URL.Query().Get("transaction")
	httputil.WriteJSON(w, http.StatusOK, payment.CheckoutSession{
		PaymentID:   p.ID,
		CheckoutURL: "https://checkout.escrow.test/pay/" + p.ID + "?return=" + url.QueryEscape(CheckoutReturn(txID, p.ID, "success")),
	})
}

// CheckoutReturn builds the URL the checkout page redirects to.
func CheckoutReturn(txID, paymentID, outcome string) string {
	return FakeFrontendURL + "/member/transactions/buy/" + txID + "?payment=" + paymentID + "&payment_status=" + outcome
}

// ---- withdrawals ----

func (f *FakeAPI) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFilter(w, r, "user_id")
	if !ok {
		return
	}
	if _, admin := caller(r); owner == "" && !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*withdrawal.Withdrawal
	for _, wd := range f.withdrawals {
		if owner == "" || wd.UserID == owner {
			items = append(items, wd)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, paginate(r, items, "withdrawal_items"))
}

func (f *FakeAPI) getWithdrawal(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	wd := f.findWithdrawal(mux.Vars(r)["id"])
	if wd == nil {
		httputil.WriteError(w, http.StatusNotFound, "withdrawal not found")
		return
	}
	if !admin && wd.UserID != uid {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to view this withdrawal")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wd)
}

func (f *FakeAPI) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	var body struct {
		UserID  string            `json:"user_id"`
		Status  withdrawal.Status `json:"status"`
		Amount  float64           `json:"amount"`
		Method  string            `json:"method"`
		Account string            `json:"account"`
	}
	if !decode(w, r, &body) {
		return
	}
	owner := uid
	if admin && body.UserID != "" {
		f.mu.Lock()
		owner = f.resolveUsername(body.UserID)
		f.mu.Unlock()
	}
	if body.Status == 0 {
		body.Status = withdrawal.StatusPending
	}
	wd := f.AddWithdrawal(withdrawal.Withdrawal{UserID: owner, Status: body.Status, Amount: body.Amount, Method: body.Method, Account: body.Account})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"InsertedID": wd.ID})
}

func (f *FakeAPI) updateWithdrawal(w http.ResponseWriter, r *http.Request) {
	if _, admin := caller(r); !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	var body struct {
		Status  *withdrawal.Status `json:"status"`
		Amount  *float64           `json:"amount"`
		Method  *string            `json:"method"`
		Account *string            `json:"account"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	wd := f.findWithdrawal(mux.Vars(r)["id"])
	if wd == nil {
		httputil.WriteError(w, http.StatusNotFound, "withdrawal not found")
		return
	}
	if body.Status != nil {
		wd.Status = *body.Status
	}
	if body.Amount != nil {
		wd.Amount = *body.Amount
	}
	if body.Method != nil {
		wd.Method = *body.Method
	}
	if body.Account != nil {
		wd.Account = *body.Account
	}
	wd.UpdatedAt = f.now()
	httputil.WriteJSON(w, http.StatusOK, 1)
}

func (f *FakeAPI) deleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	id := mux.Vars(r)["id"]
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, wd := range f.withdrawals {
		if wd.ID == id {
			if !admin && wd.UserID != uid {
				httputil.WriteError(w, http.StatusForbidden, "you are not authorized to delete this withdrawal")
				return
			}
			f.withdrawals = append(f.withdrawals[:i], f.withdrawals[i+1:]...)
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"DeletedCount": 1})
}

// ---- transactions ----

func (f *FakeAPI) listTransactions(w http.ResponseWriter, r *http.Request) {
	_, admin := caller(r)
	seller, ok := ownerFilter(w, r, "user_id")
	if !ok {
		return
	}
	buyer := ""
	if seller == "" {
		if buyer, ok = ownerFilter(w, r, "customer_id"); !ok {
			return
		}
	}
	if seller == "" && buyer == "" && !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*transaction.Transaction
	for _, t := range f.transactions {
		switch {
		case seller != "" && t.UserID != seller:
		case buyer != "" && t.CustomerID != buyer:
		default:
			items = append(items, t)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, paginate(r, items, "transaction_items"))
}

func (f *FakeAPI) getTransaction(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.findTransaction(mux.Vars(r)["id"])
	if t == nil {
		httputil.WriteError(w, http.StatusNotFound, "transaction not found")
		return
	}
	q := r.URL.Query()
	switch {
	case q.Get("user_id") == "current" && t.UserID == uid:
	case q.Get("customer_id") == "current" && t.CustomerID == uid:
	case admin:
	default:
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

type transactionBody struct {
	UserID           *string              `json:"user_id"`
	CustomerID       *string              `json:"customer_id"`
	Status           *transaction.Status  `json:"status"`
	Type             *transaction.Type    `json:"type"`
	ProductID        *string              `json:"product_id"`
	ProductNumber    *int                 `json:"product_number"`
	AddressID        *string              `json:"address_id"`
	PaymentID        *string              `json:"payment_id"`
	Shipping         *string              `json:"shipping"`
	ShippingPrice    *float64             `json:"shipping_price"`
	ShippingNumber   *string              `json:"shipping_number"`
	ShippingDetails  *string              `json:"shipping_details"`
	ShippingImageID  *string              `json:"shipping_image_id"`
	DeliveredAt      *time.Time           `json:"delivered_at"`
	DeliveredDetails *string              `json:"delivered_details"`
	Fee              *float64             `json:"fee"`
	FeeType          *transaction.FeeType `json:"fee_type"`
}

// references checks product, address and payment IDs named in a body.
func (f *FakeAPI) references(body transactionBody) string {
	if body.ProductID != nil && *body.ProductID != "" && f.findProduct(*body.ProductID) == nil {
		return "product_error"
	}
	if body.AddressID != nil && *body.AddressID != "" && f.findAddress(*body.AddressID) == nil {
		return "address_error"
	}
	if body.PaymentID != nil && *body.PaymentID != "" && f.findPayment(*body.PaymentID) == nil {
		return "payment_error"
	}
	return ""
}

func (f *FakeAPI) createTransaction(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	var body transactionBody
	if !decode(w, r, &body) {
		return
	}
	if body.Type == nil || body.ProductID == nil || body.ProductNumber == nil || body.FeeType == nil {
		httputil.WriteError(w, http.StatusBadRequest, "Key: 'Transaction.Type' Error:Field validation for 'Type' failed on the 'required' tag")
		return
	}

	f.mu.Lock()
	seller := uid
	if admin {
		seller = f.resolveUsername(str(body.UserID))
		if seller == "" {
			f.mu.Unlock()
			httputil.WriteError(w, http.StatusBadRequest, "user_error")
			return
		}
	}
	customer := f.resolveUsername(str(body.CustomerID))
	if customer == "" {
		f.mu.Unlock()
		httputil.WriteError(w, http.StatusBadRequest, "customer_error")
		return
	}
	if code := f.references(body); code != "" {
		f.mu.Unlock()
		httputil.WriteError(w, http.StatusBadRequest, code)
		return
	}
	f.mu.Unlock()

	tx := transaction.Transaction{
		UserID:           seller,
		CustomerID:       customer,
		Type:             *body.Type,
		ProductID:        *body.ProductID,
		ProductNumber:    *body.ProductNumber,
		AddressID:        str(body.AddressID),
		PaymentID:        str(body.PaymentID),
		Shipping:         str(body.Shipping),
		ShippingNumber:   str(body.ShippingNumber),
		ShippingDetails:  str(body.ShippingDetails),
		ShippingImageID:  str(body.ShippingImageID),
		DeliveredDetails: str(body.DeliveredDetails),
		FeeType:          *body.FeeType,
	}
	if body.Status != nil {
		tx.Status = *body.Status
	}
	if body.ShippingPrice != nil {
		tx.ShippingPrice = *body.ShippingPrice
	}
	if body.Fee != nil {
		tx.Fee = *body.Fee
	}
	created := f.AddTransaction(tx)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"InsertedID": created.ID})
}

// updateTransaction applies a partial update. delivered_at is overwritten
// on every call: absent or null clears it.
func (f *FakeAPI) updateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, admin := caller(r)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body transactionBody
	if err := json.Unmarshal(raw, &body); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.findTransaction(mux.Vars(r)["id"])
	if t == nil {
		httputil.WriteError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if !admin && t.UserID != uid && t.CustomerID != uid {
		httputil.WriteError(w, http.StatusForbidden, "you are not authorized to update this transaction")
		return
	}
	if code := f.references(body); code != "" {
		httputil.WriteError(w, http.StatusBadRequest, code)
		return
	}

	if body.Status != nil {
		t.Status = *body.Status
	}
	if body.Type != nil {
		t.Type = *body.Type
	}
	if body.ProductID != nil {
		t.ProductID = *body.ProductID
	}
	if body.ProductNumber != nil {
		t.ProductNumber = *body.ProductNumber
	}
	if body.AddressID != nil {
		t.AddressID = *body.AddressID
	}
	if body.PaymentID != nil {
		t.PaymentID = *body.PaymentID
	}
	if body.Shipping != nil {
		t.Shipping = *body.Shipping
	}
	if body.ShippingPrice != nil {
		t.ShippingPrice = *body.ShippingPrice
	}
	if body.ShippingNumber != nil {
		t.ShippingNumber = *body.ShippingNumber
	}
	if body.ShippingDetails != nil {
		t.ShippingDetails = *body.ShippingDetails
	}
	if body.ShippingImageID != nil {
		t.ShippingImageID = *body.ShippingImageID
	}
	t.DeliveredAt = body.DeliveredAt
	if body.DeliveredDetails != nil {
		t.DeliveredDetails = *body.DeliveredDetails
	}
	if body.Fee != nil {
		t.Fee = *body.Fee
	}
	if body.FeeType != nil {
		t.FeeType = *body.FeeType
	}
	t.UpdatedAt = f.now()
	httputil.WriteJSON(w, http.StatusOK, 1)
}

func (f *FakeAPI) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if _, admin := caller(r); !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	id := mux.Vars(r)["id"]
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.transactions {
		if t.ID == id {
			f.transactions = append(f.transactions[:i], f.transactions[i+1:]...)
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"DeletedCount": 1})
}

// ---- files ----

func (f *FakeAPI) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "No file is received")
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "No file is received")
		return
	}
	defer part.Close()
	n, _ := io.Copy(io.Discard, part)

	fl := f.AddFile(file.File{
		OriginalName: header.Filename,
		FileType:     header.Header.Get("Content-Type"),
		Size:         n,
	})
	httputil.WriteJSON(w, http.StatusOK, file.Upload{ID: fl.ID, CloudURL: fl.CloudURL})
}

func (f *FakeAPI) listFiles(w http.ResponseWriter, r *http.Request) {
	if _, admin := caller(r); !admin {
		httputil.WriteError(w, http.StatusBadRequest, notAuthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	httputil.WriteJSON(w, http.StatusOK, paginate(r, f.files, "file_items"))
}

func (f *FakeAPI) getFile(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl := f.findFile(mux.Vars(r)["id"])
	if fl == nil {
		httputil.WriteError(w, http.StatusNotFound, "file not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fl)
}

func (f *FakeAPI) deleteFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, fl := range f.files {
		if fl.ID == id {
			f.files = append(f.files[:i], f.files[i+1:]...)
			break
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"DeletedCount": 1})
}
