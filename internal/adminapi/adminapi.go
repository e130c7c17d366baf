// Package adminapi exposes the single runtime-mutation surface of the
// monitor: adding a watched address without a restart.
package adminapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ktl-XV/account-monitor/internal/accountregistry"
)

// addAccountRequest is the POST /accounts body.
type addAccountRequest struct {
	Address string `json:"address"`
	Label   string `json:"label"`
}

type addAccountResponse struct {
	Address string `json:"address"`
	Label   string `json:"label"`
	Status  string `json:"status"` // "inserted" or "already_present"
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler builds the admin mux: POST /accounts is the only route.
func Handler(reg *accountregistry.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		handleAddAccount(w, r, reg)
	})
	return mux
}

func handleAddAccount(w http.ResponseWriter, r *http.Request, reg *accountregistry.Registry) {
	var req addAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if !isStrictHexAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "address is not a valid hex EVM address")
		return
	}

	addr := common.HexToAddress(req.Address)
	result := reg.Insert(addr, req.Label)

	status := "inserted"
	if result == accountregistry.AlreadyPresent {
		status = "already_present"
	}

	writeJSON(w, http.StatusOK, addAccountResponse{
		Address: addr.Hex(),
		Label:   req.Label,
		Status:  status,
	})
}

// isStrictHexAddress requires the 0x prefix spec.md §6 defines a valid
// address by; common.IsHexAddress alone also accepts bare 40-char hex.
func isStrictHexAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && len(s) == 42 && common.IsHexAddress(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
