package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/voltpacks/packmint/internal/chain"
)

func TestChainSourceScansConfiguredWindow(t *testing.T) {
	var (
		mu        sync.Mutex
		fromBlock string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		switch req.Method {
		case "eth_blockNumber":
			io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":"0x2710"}`)
		case "eth_getLogs":
			var filter struct {
				FromBlock string `json:"fromBlock"`
			}
			if len(req.Params) > 0 {
				_ = json.Unmarshal(req.Params[0], &filter)
			}
			mu.Lock()
			fromBlock = filter.FromBlock
			mu.Unlock()
			io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":[]}`)
		default:
			t.Errorf("unexpected method %q", req.Method)
		}
	}))
	defer srv.Close()

	client, err := chain.NewClient(chain.Config{RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	pack := common.HexToAddress("0x3434343434343434343434343434343434343434")
	reader := chain.NewContractReader(client, common.Address{}, pack)

	source := NewChainSource(client, reader, pack, 250)
	if _, err := source.RecentMints(context.Background()); err != nil {
		t.Fatalf("RecentMints() error = %v", err)
	}

	mu.Lock()
	got := fromBlock
	mu.Unlock()
	// Head 0x2710 (10000) minus the 250 block window.
	if got != "0x2616" {
		t.Fatalf("fromBlock = %q, want 0x2616", got)
	}
}

func TestChainSourceZeroWindowUsesDefault(t *testing.T) {
	source := NewChainSource(nil, nil, common.Address{}, 0)
	if source.window != DefaultWindow {
		t.Fatalf("window = %d, want %d", source.window, DefaultWindow)
	}
}
