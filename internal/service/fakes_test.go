package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/payment"
	"github.com/movenorth/booking-backend/internal/queue"
	"github.com/movenorth/booking-backend/internal/repository"
)

// --- in-memory BookingStore ---

type memBookings struct {
	mu   sync.Mutex
	rows map[string]*model.Booking
	seq  int
}

func newMemBookings() *memBookings {
	return &memBookings{rows: map[string]*model.Booking{}}
}

func (m *memBookings) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.UID == "" {
		m.seq++
		b.UID = "booking-" + strconv.Itoa(m.seq)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	cp := *b
	m.rows[b.UID] = &cp
	return nil
}

func (m *memBookings) GetByUID(_ context.Context, uid string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[uid]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "booking not found")
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) List(_ context.Context) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.rows {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (m *memBookings) ListByUser(_ context.Context, userUID string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.rows {
		if b.UserUID != nil && *b.UserUID == userUID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memBookings) UpdateFields(_ context.Context, uid string, f repository.UpdateBookingFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[uid]
	if !ok {
		return apperr.New(apperr.KindNotFound, "booking not found")
	}
	b.FirstName, b.LastName = f.FirstName, f.LastName
	b.PhoneNumber = f.PhoneNumber
	b.PickupAddress, b.DropoffAddress = f.PickupAddress, f.DropoffAddress
	b.MovingDate = f.MovingDate
	b.Service, b.Description = f.Service, f.Description
	return nil
}

func (m *memBookings) Reschedule(_ context.Context, uid string, movingDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[uid]
	if !ok {
		return apperr.New(apperr.KindNotFound, "booking not found")
	}
	b.MovingDate = movingDate
	return nil
}

func (m *memBookings) UpdateStatus(_ context.Context, uid string, status model.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[uid]
	if !ok {
		return apperr.New(apperr.KindNotFound, "booking not found")
	}
	b.Status = status
	return nil
}

func (m *memBookings) UpdateAgreedPrice(_ context.Context, uid, price string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[uid]
	if !ok {
		return apperr.New(apperr.KindNotFound, "booking not found")
	}
	b.AgreedPrice = price
	return nil
}

func (m *memBookings) Delete(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[uid]; !ok {
		return apperr.New(apperr.KindNotFound, "booking not found")
	}
	delete(m.rows, uid)
	return nil
}

func (m *memBookings) BackfillUserLinks(_ context.Context, email, userUID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.rows {
		if b.Email == email && b.UserUID == nil {
			uid := userUID
			b.UserUID = &uid
			n++
		}
	}
	return n, nil
}

func (m *memBookings) CountAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

func (m *memBookings) CountCreatedBetween(_ context.Context, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.rows {
		if !b.CreatedAt.Before(from) && b.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *memBookings) MonthlyCounts(_ context.Context, year int) (map[int]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[int]int64{}
	for _, b := range m.rows {
		if b.CreatedAt.Year() == year {
			counts[int(b.CreatedAt.Month())]++
		}
	}
	return counts, nil
}

func (m *memBookings) MonthlyCountsForUser(_ context.Context, userUID string, year int) (map[int]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[int]int64{}
	for _, b := range m.rows {
		if b.UserUID != nil && *b.UserUID == userUID && b.CreatedAt.Year() == year {
			counts[int(b.CreatedAt.Month())]++
		}
	}
	return counts, nil
}

// --- in-memory UserStore ---

type memUsers struct {
	mu   sync.Mutex
	rows map[string]*model.User
	seq  int
}

func newMemUsers() *memUsers { return &memUsers{rows: map[string]*model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == u.Email || row.Username == u.Username {
			return apperr.New(apperr.KindConflict, "username or email already exists")
		}
	}
	if u.UID == "" {
		m.seq++
		u.UID = "user-" + strconv.Itoa(m.seq)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	m.rows[u.UID] = &cp
	return nil
}

func (m *memUsers) GetByUID(_ context.Context, uid string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[uid]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "user not found")
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "user not found")
}

func (m *memUsers) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.rows {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUsers) SetVerified(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[uid]
	if !ok {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	u.IsVerified = true
	return nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, uid, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[uid]
	if !ok {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) CountAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

func (m *memUsers) CountCreatedBetween(_ context.Context, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.rows {
		if !u.CreatedAt.Before(from) && u.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

// --- in-memory InvoiceStore ---

type memInvoices struct {
	mu   sync.Mutex
	rows map[string]*model.Invoice
	seq  int
}

func newMemInvoices() *memInvoices { return &memInvoices{rows: map[string]*model.Invoice{}} }

func (m *memInvoices) Create(_ context.Context, inv *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.UID == "" {
		m.seq++
		inv.UID = "invoice-" + strconv.Itoa(m.seq)
	}
	cp := *inv
	m.rows[inv.UID] = &cp
	return nil
}

func (m *memInvoices) GetByExternalID(_ context.Context, externalID string) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.rows {
		if inv.ExternalID == externalID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "invoice not found")
}

func (m *memInvoices) List(_ context.Context) ([]model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Invoice
	for _, inv := range m.rows {
		out = append(out, *inv)
	}
	return out, nil
}

func (m *memInvoices) MarkPaid(_ context.Context, uid string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[uid]
	if !ok {
		return apperr.New(apperr.KindNotFound, "invoice not found")
	}
	inv.Status = model.InvoicePaid
	at := paidAt
	inv.PaidAt = &at
	return nil
}

func (m *memInvoices) SumPaidAll(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for _, inv := range m.rows {
		if inv.Status == model.InvoicePaid {
			sum += inv.Amount
		}
	}
	return sum, nil
}

func (m *memInvoices) SumPaidBetween(_ context.Context, from, to time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for _, inv := range m.rows {
		if inv.Status == model.InvoicePaid && inv.PaidAt != nil &&
			!inv.PaidAt.Before(from) && inv.PaidAt.Before(to) {
			sum += inv.Amount
		}
	}
	return sum, nil
}

func (m *memInvoices) MonthlyRevenue(_ context.Context, year int) (map[int]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	revenue := map[int]float64{}
	for _, inv := range m.rows {
		if inv.Status == model.InvoicePaid && inv.PaidAt != nil && inv.PaidAt.Year() == year {
			revenue[int(inv.PaidAt.Month())] += inv.Amount
		}
	}
	return revenue, nil
}

// --- in-memory Blocklist ---

type memBlocklist struct {
	mu   sync.Mutex
	rows map[string]time.Time
}

func newMemBlocklist() *memBlocklist { return &memBlocklist{rows: map[string]time.Time{}} }

func (m *memBlocklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		return nil
	}
	m.rows[jti] = time.Now().Add(ttl)
	return nil
}

func (m *memBlocklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.rows[jti]
	return ok && time.Now().Before(exp), nil
}

// --- recording mail sink ---

type memSink struct {
	mu     sync.Mutex
	events []queue.EmailEvent
}

func (m *memSink) Send(_ context.Context, event queue.EmailEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memSink) sent() []queue.EmailEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.EmailEvent(nil), m.events...)
}

// --- fake payment gateway ---

type fakeGateway struct {
	mu        sync.Mutex
	customers map[string]*payment.Customer // keyed by email
	invoices  map[string]*payment.Invoice
	seq       int
	calls     []string

	failStep string // method name that should fail, "" for none
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		customers: map[string]*payment.Customer{},
		invoices:  map[string]*payment.Invoice{},
	}
}

func (g *fakeGateway) fail(step string) error {
	if g.failStep == step {
		return apperr.New(apperr.KindPaymentGateway, "payment gateway: "+step+" failed")
	}
	return nil
}

func (g *fakeGateway) record(call string) {
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) FindCustomerByEmail(_ context.Context, email string) (*payment.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("FindCustomerByEmail")
	if err := g.fail("customer lookup"); err != nil {
		return nil, err
	}
	return g.customers[email], nil
}

func (g *fakeGateway) CreateCustomer(_ context.Context, email, name string) (*payment.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CreateCustomer")
	if err := g.fail("customer creation"); err != nil {
		return nil, err
	}
	g.seq++
	c := &payment.Customer{ID: "cus_" + strconv.Itoa(g.seq), Email: email, Name: name}
	g.customers[email] = c
	return c, nil
}

func (g *fakeGateway) CreateInvoice(_ context.Context, customerID string, _ int) (*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("CreateInvoice")
	if err := g.fail("invoice creation"); err != nil {
		return nil, err
	}
	g.seq++
	inv := &payment.Invoice{ID: "in_" + strconv.Itoa(g.seq), Status: "draft"}
	g.invoices[inv.ID] = inv
	return inv, nil
}

func (g *fakeGateway) AddInvoiceItem(_ context.Context, _, invoiceID string, _ int64, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("AddInvoiceItem")
	return g.fail("invoice item attach")
}

func (g *fakeGateway) FinalizeInvoice(_ context.Context, invoiceID string) (*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("FinalizeInvoice")
	if err := g.fail("invoice finalization"); err != nil {
		return nil, err
	}
	inv := g.invoices[invoiceID]
	inv.Status = "open"
	inv.HostedInvoiceURL = "https://pay.example.com/" + invoiceID
	return inv, nil
}

func (g *fakeGateway) SendInvoice(_ context.Context, invoiceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("SendInvoice")
	return g.fail("invoice delivery")
}
