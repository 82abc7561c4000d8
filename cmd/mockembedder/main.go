// Command mockembedder is a development stand-in for a real embedding
// provider. It speaks the OpenAI embeddings shape on /v1/embeddings and the
// TEI shape on /embed, returning deterministic unit vectors derived from the
// input text so repeated runs embed identically.
package main

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

var (
	addrFlag = flag.String("addr", ":8091", "listen address")
	dimsFlag = flag.Int("dims", 384, "dimensionality of returned vectors")
)

func main() {
	flag.Parse()

	r := mux.NewRouter()
	r.HandleFunc("/v1/embeddings", openAIHandler(*dimsFlag)).Methods(http.MethodPost)
	r.HandleFunc("/embed", teiHandler(*dimsFlag)).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         *addrFlag,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Printf("mockembedder listening on %s (dims=%d)", *addrFlag, *dimsFlag)
	log.Fatal(srv.ListenAndServe())
}

// embed derives a deterministic unit vector from the input text: the
// sha256 of the text seeds a counter-mode hash stream, and the resulting
// vector is L2-normalized.
func embed(text string, dims int) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, dims)
	var norm float64
	var block [40]byte
	copy(block[:32], seed[:])
	for i := 0; i < dims; i++ {
		binary.BigEndian.PutUint64(block[32:], uint64(i))
		h := sha256.Sum256(block[:])
		// Map the first 8 bytes onto [-1, 1).
		u := binary.BigEndian.Uint64(h[:8])
		v := float64(int64(u)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIResponse struct {
	Object string       `json:"object"`
	Model  string       `json:"model"`
	Data   []openAIData `json:"data"`
}

func openAIHandler(dims int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if len(req.Input) == 0 {
			writeError(w, http.StatusBadRequest, "input is required")
			return
		}
		resp := openAIResponse{Object: "list", Model: req.Model}
		for i, text := range req.Input {
			resp.Data = append(resp.Data, openAIData{
				Object:    "embedding",
				Embedding: embed(text, dims),
				Index:     i,
			})
		}
		writeJSON(w, resp)
	}
}

type teiRequest struct {
	Inputs []string `json:"inputs"`
}

func teiHandler(dims int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req teiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if len(req.Inputs) == 0 {
			writeError(w, http.StatusBadRequest, "inputs is required")
			return
		}
		vectors := make([][]float32, len(req.Inputs))
		for i, text := range req.Inputs {
			vectors[i] = embed(text, dims)
		}
		writeJSON(w, vectors)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q}}`, msg)
}
