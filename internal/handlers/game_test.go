package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"lucky-rounds-backend/internal/fair"
	"lucky-rounds-backend/internal/handlers"
)

func verifyRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewGameHandler(nil, nil, nil, nil, nil)
	r := gin.New()
	r.POST("/verify", h.VerifyGame)
	return r
}

func postVerify(t *testing.T, r *gin.Engine, body map[string]any) (int, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w.Code, resp
}

func verification(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	v, ok := resp["verification"].(map[string]any)
	if !ok {
		t.Fatalf("response has no verification object: %v", resp)
	}
	return v
}

func TestVerifyColorChecksClaim(t *testing.T) {
	r := verifyRouter()

	serverSeed, clientSeed := "server-seed-1", "client-seed-1"
	var nonce int64 = 3
	expected, _ := fair.ColorDraw(fair.Derive(serverSeed, clientSeed, nonce))

	base := map[string]any{
		"game_type":   "color",
		"server_seed": serverSeed,
		"client_seed": clientSeed,
		"nonce":       nonce,
	}

	base["claimed_outcome"] = expected
	code, resp := postVerify(t, r, base)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	v := verification(t, resp)
	if v["valid"] != true {
		t.Errorf("honest claim %q should verify: %v", expected, v)
	}
	if v["color"] != expected {
		t.Errorf("color = %v, want %v", v["color"], expected)
	}

	wrong := fair.ColorRed
	if expected == fair.ColorRed {
		wrong = fair.ColorBlack
	}
	base["claimed_outcome"] = wrong
	code, resp = postVerify(t, r, base)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if v := verification(t, resp); v["valid"] != false {
		t.Errorf("wrong claim %q must not verify: %v", wrong, v)
	}
}

func TestVerifyColorRequiresClaim(t *testing.T) {
	r := verifyRouter()

	code, _ := postVerify(t, r, map[string]any{
		"game_type":   "color",
		"server_seed": "s",
		"client_seed": "c",
		"nonce":       1,
	})
	if code != http.StatusBadRequest {
		t.Errorf("claim-less color verify status = %d, want 400", code)
	}
}

func TestVerifyCoinFlipChecksClaim(t *testing.T) {
	r := verifyRouter()

	serverSeed, clientSeed := "server-seed-2", "client-seed-2"
	var nonce int64 = 5
	side, _ := fair.VerifyCoinFlip(serverSeed, clientSeed, nonce, 1.0)

	base := map[string]any{
		"game_type":   "coinflip",
		"server_seed": serverSeed,
		"client_seed": clientSeed,
		"nonce":       nonce,
		"house_edge":  1.0,
	}

	base["claimed_outcome"] = side
	code, resp := postVerify(t, r, base)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if v := verification(t, resp); v["valid"] != true || v["side"] != side {
		t.Errorf("honest claim %q should verify: %v", side, v)
	}

	wrong := "heads"
	if side == "heads" {
		wrong = "tails"
	}
	base["claimed_outcome"] = wrong
	_, resp = postVerify(t, r, base)
	if v := verification(t, resp); v["valid"] != false {
		t.Errorf("wrong claim %q must not verify: %v", wrong, v)
	}

	delete(base, "claimed_outcome")
	code, _ = postVerify(t, r, base)
	if code != http.StatusBadRequest {
		t.Errorf("claim-less coinflip verify status = %d, want 400", code)
	}
}

func TestVerifyDiceChecksClaim(t *testing.T) {
	r := verifyRouter()

	serverSeed, clientSeed := "server-seed-3", "client-seed-3"
	var nonce int64 = 9
	roll := fair.DiceRoll(fair.Derive(serverSeed, clientSeed, nonce))

	base := map[string]any{
		"game_type":   "dice",
		"server_seed": serverSeed,
		"client_seed": clientSeed,
		"nonce":       nonce,
	}

	base["claimed"] = roll
	_, resp := postVerify(t, r, base)
	if v := verification(t, resp); v["valid"] != true {
		t.Errorf("honest roll %d should verify: %v", roll, v)
	}

	base["claimed"] = (roll % 100) + 1
	_, resp = postVerify(t, r, base)
	if v := verification(t, resp); v["valid"] != false {
		t.Errorf("wrong roll must not verify: %v", v)
	}
}
