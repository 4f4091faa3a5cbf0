package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/example/keydash/models"
	"github.com/labstack/echo/v4"
)

type AccountRequest struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	OrganizationName string `json:"organization_name"`
}

func (h *Handler) GetAccounts(c echo.Context) error {
	accounts, err := h.Store.ListAccounts()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load accounts"})
	}
	return c.JSON(http.StatusOK, accounts)
}

func (h *Handler) CreateAccount(c echo.Context) error {
	var req AccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email is required"})
	}

	account := models.Account{
		Email:            email,
		Name:             strings.TrimSpace(req.Name),
		OrganizationName: strings.TrimSpace(req.OrganizationName),
	}
	if err := h.Store.CreateAccount(&account); err != nil {
		if isUniqueViolation(err) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Account with this email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	return c.JSON(http.StatusCreated, account)
}

func (h *Handler) UpdateAccount(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid account id"})
	}

	var req AccountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email is required"})
	}

	account, err := h.Store.GetAccount(id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if account == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Account not found"})
	}

	account.Email = email
	account.Name = strings.TrimSpace(req.Name)
	account.OrganizationName = strings.TrimSpace(req.OrganizationName)
	if err := h.Store.UpdateAccount(account); err != nil {
		if isUniqueViolation(err) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Account with this email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	return c.JSON(http.StatusOK, account)
}

// DeleteAccount removes the account and all keys it owns.
func (h *Handler) DeleteAccount(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid account id"})
	}

	account, err := h.Store.GetAccount(id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if account == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Account not found"})
	}

	if err := h.Store.DeleteAccount(id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Account and associated keys deleted successfully"})
}

// GetAccountAdminKeys lists the admin keys of one account, masked. The UI
// uses it to populate the association dropdown when linking a project key.
func (h *Handler) GetAccountAdminKeys(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid account id"})
	}

	adminKeys, err := h.Store.AdminKeysForAccount(id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load admin keys"})
	}

	resp := []map[string]interface{}{}
	for _, k := range adminKeys {
		resp = append(resp, map[string]interface{}{
			"id":         k.ID,
			"name":       k.Name,
			"masked_key": k.MaskedKey,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	return uint(id), err
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
