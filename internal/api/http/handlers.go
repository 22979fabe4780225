package apihttp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lunchbot/internal/audit"
	"lunchbot/internal/auth"
	"lunchbot/internal/deadline"
	ledger "lunchbot/internal/ledger/domain"
	menu "lunchbot/internal/menu/domain"
	menurepo "lunchbot/internal/menu/infrastructure/postgres"
	orderapp "lunchbot/internal/orders/application"
	settingsrepo "lunchbot/internal/settings/infrastructure/postgres"
	settlementapp "lunchbot/internal/settlement/application"
	users "lunchbot/internal/users/domain"
	userrepo "lunchbot/internal/users/infrastructure/postgres"
)

const cutoffLayout = "15:04"

// SettingsHandler serves the deadline setting.
type SettingsHandler struct {
	db      *sql.DB
	auditor audit.Logger
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *sql.DB, auditor audit.Logger) *SettingsHandler {
	return &SettingsHandler{db: db, auditor: auditor}
}

// ServeHTTP handles GET and POST /api/v1/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	repo := settingsrepo.NewSettingsRepository(h.db)

	switch r.Method {
	case http.MethodGet:
		cutoff, err := repo.Get(r.Context(), settingsrepo.KeyDeadline)
		if errors.Is(err, settingsrepo.ErrNotFound) {
			cutoff = deadline.DefaultCutoff
		} else if err != nil {
			http.Error(w, "query settings error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"deadline_time": cutoff})
	case http.MethodPost:
		var body struct {
			DeadlineTime string `json:"deadline_time"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if _, err := time.Parse(cutoffLayout, body.DeadlineTime); err != nil {
			http.Error(w, "deadline_time must be HH:MM", http.StatusBadRequest)
			return
		}
		if err := repo.Set(r.Context(), settingsrepo.KeyDeadline, body.DeadlineTime); err != nil {
			http.Error(w, "save settings error", http.StatusInternalServerError)
			return
		}
		h.audit(r, "settings.update", settingsrepo.KeyDeadline, map[string]string{"deadline_time": body.DeadlineTime})
		writeJSON(w, map[string]string{"deadline_time": body.DeadlineTime})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) audit(r *http.Request, action, resourceID string, metadata any) {
	logAudit(h.auditor, r, action, "setting", resourceID, metadata)
}

type menuItemBody struct {
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	IsComboEligible bool    `json:"is_combo_eligible"`
	DisplayOrder    int     `json:"display_order"`
}

// MenuHandler serves the daily menu.
type MenuHandler struct {
	db      *sql.DB
	auditor audit.Logger
}

// NewMenuHandler constructs a MenuHandler.
func NewMenuHandler(db *sql.DB, auditor audit.Logger) *MenuHandler {
	return &MenuHandler{db: db, auditor: auditor}
}

// ServeHTTP handles GET and PUT /api/v1/menu. PUT replaces the whole menu
// for the date in one transaction.
func (h *MenuHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		date := r.URL.Query().Get("date")
		if date == "" {
			http.Error(w, "date is required", http.StatusBadRequest)
			return
		}
		items, err := menurepo.NewMenuRepository(h.db).ListByDate(r.Context(), date)
		if err != nil {
			http.Error(w, "query menu error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, items)
	case http.MethodPut:
		var body struct {
			Date  string         `json:"date"`
			Items []menuItemBody `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if _, err := time.Parse(deadline.DateLayout, body.Date); err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		for _, item := range body.Items {
			if strings.TrimSpace(item.Name) == "" {
				http.Error(w, "item name is required", http.StatusBadRequest)
				return
			}
			if item.Price <= 0 {
				http.Error(w, "item price must be positive", http.StatusBadRequest)
				return
			}
		}
		if err := h.replace(r.Context(), body.Date, body.Items); err != nil {
			http.Error(w, "save menu error", http.StatusInternalServerError)
			return
		}
		h.audit(r, "menu.replace", body.Date, map[string]int{"items": len(body.Items)})
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *MenuHandler) replace(ctx context.Context, date string, items []menuItemBody) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	repo := menurepo.NewMenuRepository(tx)
	if err := repo.DeleteByDate(ctx, date); err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, body := range items {
		item := menu.Item{
			MenuDate:        date,
			Name:            body.Name,
			Price:           decimal.NewFromFloat(body.Price),
			IsComboEligible: body.IsComboEligible,
			DisplayOrder:    body.DisplayOrder,
		}
		if item.DisplayOrder == 0 {
			item.DisplayOrder = i
		}
		if err := repo.Insert(ctx, &item); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (h *MenuHandler) audit(r *http.Request, action, resourceID string, metadata any) {
	logAudit(h.auditor, r, action, "menu", resourceID, metadata)
}

// UsersHandler serves the user list.
type UsersHandler struct {
	db *sql.DB
}

// NewUsersHandler constructs a UsersHandler.
func NewUsersHandler(db *sql.DB) *UsersHandler {
	return &UsersHandler{db: db}
}

type userRow struct {
	ID          string `json:"id"`
	ChatUserID  string `json:"chat_user_id"`
	DisplayName string `json:"display_name"`
	Balance     string `json:"balance"`
	IsAdmin     bool   `json:"is_admin"`
}

// ServeHTTP handles GET /api/v1/users.
func (h *UsersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	list, err := userrepo.NewUserRepository(h.db).List(r.Context())
	if err != nil {
		http.Error(w, "query users error", http.StatusInternalServerError)
		return
	}
	result := make([]userRow, 0, len(list))
	for _, user := range list {
		result = append(result, userRow{
			ID:          user.ID,
			ChatUserID:  user.ChatUserID,
			DisplayName: user.DisplayName,
			Balance:     user.Balance.String(),
			IsAdmin:     user.IsAdmin,
		})
	}
	writeJSON(w, result)
}

// DepositHandler credits user balances.
type DepositHandler struct {
	orders  *orderapp.Service
	auditor audit.Logger
}

// NewDepositHandler constructs a DepositHandler.
func NewDepositHandler(orders *orderapp.Service, auditor audit.Logger) *DepositHandler {
	return &DepositHandler{orders: orders, auditor: auditor}
}

// ServeHTTP handles POST /api/v1/users/{id}/deposit.
func (h *DepositHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.orders == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	userID := depositUserID(r.URL.Path)
	if userID == "" {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	balance, err := h.orders.Deposit(r.Context(), userID, decimal.NewFromFloat(body.Amount))
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	case errors.Is(err, users.ErrNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "deposit error", http.StatusInternalServerError)
		return
	}

	logAudit(h.auditor, r, "user.deposit", "user", userID, map[string]float64{"amount": body.Amount})
	writeJSON(w, map[string]string{"balance": balance.String()})
}

func depositUserID(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/v1/users/")
	trimmed = strings.TrimSuffix(trimmed, "/deposit")
	if trimmed == path || strings.Contains(trimmed, "/") {
		return ""
	}
	return trimmed
}

// OrdersHandler serves order listings for a date.
type OrdersHandler struct {
	db *sql.DB
}

// NewOrdersHandler constructs an OrdersHandler.
func NewOrdersHandler(db *sql.DB) *OrdersHandler {
	return &OrdersHandler{db: db}
}

type orderRow struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	OrderForDate string `json:"order_for_date"`
	TotalAmount  string `json:"total_amount"`
	Status       string `json:"status"`
	Items        string `json:"items"`
	CreatedAt    string `json:"created_at"`
}

// ServeHTTP handles GET /api/v1/orders.
func (h *OrdersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	status := r.URL.Query().Get("status")

	result, err := queryOrders(r.Context(), h.db, date, status)
	if err != nil {
		http.Error(w, "query orders error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func queryOrders(ctx context.Context, db *sql.DB, date, status string) ([]orderRow, error) {
	query := `
SELECT o.id, u.display_name, o.order_for_date, o.total_amount, o.status, o.created_at
FROM orders o
JOIN users u ON u.id = o.user_id
WHERE o.order_for_date = $1`
	args := []any{date}
	if status != "" {
		query += ` AND o.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY o.created_at ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []orderRow
	for rows.Next() {
		var row orderRow
		var amount decimal.Decimal
		var createdAt time.Time
		if err := rows.Scan(&row.ID, &row.DisplayName, &row.OrderForDate, &amount, &row.Status, &createdAt); err != nil {
			return nil, err
		}
		row.TotalAmount = amount.String()
		row.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		items, err := queryOrderItems(ctx, db, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Items = items
	}
	return result, nil
}

func queryOrderItems(ctx context.Context, db *sql.DB, orderID string) (string, error) {
	rows, err := db.QueryContext(ctx, `
SELECT item_name, is_combo, selected_drink
FROM order_items
WHERE order_id = $1
ORDER BY id ASC`, orderID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var name, drink string
		var isCombo bool
		if err := rows.Scan(&name, &isCombo, &drink); err != nil {
			return "", err
		}
		if isCombo && drink != "" {
			name += " (combo: " + drink + ")"
		}
		parts = append(parts, name)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(parts, ", "), nil
}

// SettleHandler triggers settlement runs.
type SettleHandler struct {
	engine  *settlementapp.Engine
	policy  *deadline.Policy
	auditor audit.Logger
}

// NewSettleHandler constructs a SettleHandler.
func NewSettleHandler(engine *settlementapp.Engine, policy *deadline.Policy, auditor audit.Logger) *SettleHandler {
	return &SettleHandler{engine: engine, policy: policy, auditor: auditor}
}

// ServeHTTP handles POST /api/v1/settlements. The date defaults to today in
// the operating timezone.
func (h *SettleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.engine == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Date string `json:"date"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.Date == "" {
		body.Date = h.policy.Today(time.Now())
	} else if _, err := time.Parse(deadline.DateLayout, body.Date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Settle(r.Context(), body.Date)
	if err != nil {
		http.Error(w, "settlement error", http.StatusInternalServerError)
		return
	}

	logAudit(h.auditor, r, "settlement.run", "settlement", body.Date, map[string]string{"outcome": string(result.Outcome)})
	writeJSON(w, map[string]any{
		"outcome":   result.Outcome,
		"date":      result.Date,
		"finalized": result.Finalized,
		"swept":     len(result.Swept),
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func logAudit(auditor audit.Logger, r *http.Request, action, resourceType, resourceID string, metadata any) {
	if auditor == nil {
		return
	}
	raw, _ := json.Marshal(metadata)
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     raw,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	_ = auditor.Log(r.Context(), entry)
}
