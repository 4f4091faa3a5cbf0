package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/keydash/keys"
	"github.com/example/keydash/models"
	"github.com/example/keydash/services"
	"github.com/labstack/echo/v4"
)

type KeyRequest struct {
	Name       string `json:"name"`
	FullKey    string `json:"full_key"`
	AccountID  uint   `json:"account_id"`
	AdminKeyID *uint  `json:"admin_key_id"`
}

// KeyResponse is the masked view of a key with its account and admin-key
// context joined in. Listing paths only ever return this shape; the raw
// secret is reserved for the reveal endpoint.
type KeyResponse struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	Key              string `json:"key"`
	Provider         string `json:"provider"`
	KeyType          string `json:"key_type"`
	AccountID        uint   `json:"account_id"`
	AdminKeyID       *uint  `json:"admin_key_id"`
	AdminName        string `json:"admin_name,omitempty"`
	AccountEmail     string `json:"account_email,omitempty"`
	AccountName      string `json:"account_name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
}

func (h *Handler) GetKeys(c echo.Context) error {
	allKeys, err := h.Store.ListKeys()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load keys"})
	}
	accounts, err := h.Store.ListAccounts()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load accounts"})
	}

	accountByID := make(map[uint]models.Account, len(accounts))
	for _, a := range accounts {
		accountByID[a.ID] = a
	}
	keyByID := make(map[uint]models.APIKey, len(allKeys))
	for _, k := range allKeys {
		keyByID[k.ID] = k
	}

	resp := []KeyResponse{}
	for _, k := range allKeys {
		resp = append(resp, h.keyResponse(k, accountByID, keyByID))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) keyResponse(k models.APIKey, accountByID map[uint]models.Account, keyByID map[uint]models.APIKey) KeyResponse {
	r := KeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		Key:        k.MaskedKey,
		Provider:   k.Provider,
		KeyType:    k.KeyType,
		AccountID:  k.AccountID,
		AdminKeyID: k.AdminKeyID,
	}
	if a, ok := accountByID[k.AccountID]; ok {
		r.AccountEmail = a.Email
		r.AccountName = a.Name
		r.OrganizationName = a.OrganizationName
	}
	if k.AdminKeyID != nil {
		if admin, ok := keyByID[*k.AdminKeyID]; ok {
			r.AdminName = admin.Name
		}
	}
	return r
}

func (h *Handler) CreateKey(c echo.Context) error {
	var req KeyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	name := strings.TrimSpace(req.Name)
	fullKey := strings.TrimSpace(req.FullKey)
	if name == "" || fullKey == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Name and API key are required"})
	}
	if req.AccountID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Account ID is required"})
	}

	account, err := h.Store.GetAccount(req.AccountID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if account == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Account not found"})
	}

	exists, err := h.Store.NameExists(name, req.AccountID, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if exists {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "API key name already exists for this account"})
	}

	provider, keyType := keys.Classify(fullKey)
	key := models.APIKey{
		Name:      name,
		FullKey:   fullKey,
		MaskedKey: keys.Mask(fullKey),
		Provider:  string(provider),
		KeyType:   string(keyType),
		AccountID: req.AccountID,
	}

	if req.AdminKeyID != nil {
		ok, err := h.checkLink(c, &key, *req.AdminKeyID)
		if !ok {
			return err
		}
		key.AdminKeyID = req.AdminKeyID
	}

	if err := h.Store.CreateKey(&key); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}

	return c.JSON(http.StatusCreated, KeyResponse{
		ID:         key.ID,
		Name:       key.Name,
		Key:        key.MaskedKey,
		Provider:   key.Provider,
		KeyType:    key.KeyType,
		AccountID:  key.AccountID,
		AdminKeyID: key.AdminKeyID,
	})
}

func (h *Handler) UpdateKey(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid key id"})
	}

	var req KeyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Name is required"})
	}

	key, err := h.Store.GetKey(id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if key == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "API key not found"})
	}

	accountID := key.AccountID
	if req.AccountID != 0 {
		accountID = req.AccountID
	}

	exists, err := h.Store.NameExists(name, accountID, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if exists {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "API key name already exists for this account"})
	}

	key.Name = name
	key.AccountID = accountID

	// A replacement secret re-derives classification and mask; they are
	// never mutated independently of the raw value.
	if fullKey := strings.TrimSpace(req.FullKey); fullKey != "" {
		provider, keyType := keys.Classify(fullKey)
		key.FullKey = fullKey
		key.MaskedKey = keys.Mask(fullKey)
		key.Provider = string(provider)
		key.KeyType = string(keyType)
	}

	if req.AdminKeyID != nil {
		ok, err := h.checkLink(c, key, *req.AdminKeyID)
		if !ok {
			return err
		}
	}
	key.AdminKeyID = req.AdminKeyID

	if err := h.Store.UpdateKey(key); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}

	return c.JSON(http.StatusOK, KeyResponse{
		ID:         key.ID,
		Name:       key.Name,
		Key:        key.MaskedKey,
		Provider:   key.Provider,
		KeyType:    key.KeyType,
		AccountID:  key.AccountID,
		AdminKeyID: key.AdminKeyID,
	})
}

// checkLink validates the admin association. When the link is illegal it
// writes the rejection response itself and reports ok=false.
func (h *Handler) checkLink(c echo.Context, candidate *models.APIKey, adminID uint) (bool, error) {
	admin, err := h.Store.GetKey(adminID)
	if err != nil {
		return false, c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if admin == nil {
		return false, c.JSON(http.StatusBadRequest, map[string]string{"error": "Admin key not found"})
	}
	if err := keys.ValidateLink(candidate, admin); err != nil {
		var linkErr *keys.LinkError
		if errors.As(err, &linkErr) {
			return false, c.JSON(http.StatusBadRequest, map[string]string{
				"error":  linkErr.Detail,
				"reason": string(linkErr.Reason),
			})
		}
		return false, c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return true, nil
}

func (h *Handler) DeleteKey(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid key id"})
	}

	key, err := h.Store.GetKey(id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if key == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "API key not found"})
	}

	if err := h.Store.DeleteKey(id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "API key deleted successfully"})
}

// RevealKey is the only path that returns the raw secret.
func (h *Handler) RevealKey(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid key id"})
	}

	key, err := h.Store.GetKey(id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if key == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "API key not found"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":       key.ID,
		"name":     key.Name,
		"full_key": key.FullKey,
		"provider": key.Provider,
		"key_type": key.KeyType,
	})
}

// TestKey runs the provider's cheapest liveness probe for one key and maps
// the outcome to {valid, detail}. The stored classification is never changed
// by the result: validity and classification are independent.
func (h *Handler) TestKey(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid key id"})
	}

	key, err := h.Store.GetKey(id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database error"})
	}
	if key == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "API key not found"})
	}

	client := h.Registry.For(keys.Provider(key.Provider))
	if err := client.TestKey(c.Request().Context(), key.FullKey); err != nil {
		perr := services.AsProviderError(err)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"valid":  false,
			"code":   string(perr.Code),
			"detail": perr.Detail,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid":  true,
		"detail": "API key is valid and working",
	})
}
