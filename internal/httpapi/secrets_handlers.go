package httpapi

import (
	"encoding/json"
	"net/http"

	"phdhunt-engine/internal/secrets"
)

type SecretsHandler struct{}

type setSecretReq struct {
	Value string `json:"value"`
}

func (h SecretsHandler) set(account string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setSecretReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
			return
		}
		if err := secrets.Set(account, req.Value); err != nil {
			WriteError(w, r, http.StatusBadRequest, "keyring_error", "failed to store secret: "+err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h SecretsHandler) SetDBToken() http.HandlerFunc { return h.set(secrets.DBTokenAccount) }

func (h SecretsHandler) SetRedisPassword() http.HandlerFunc {
	return h.set(secrets.RedisPasswordAccount)
}
