package main

import (
	"reflect"

	"github.com/bytedance/sonic"
)

// sonic falls back to encoding/json on platforms without its JIT, so there
// is no separate std build.
var fastJSON = sonic.ConfigStd

func init() {
	// CoinGecko quotes and /healthz are the only JSON on the request path.
	_ = sonic.Pretouch(reflect.TypeOf(map[string]map[string]float64{}))
	_ = sonic.Pretouch(reflect.TypeOf(healthResponse{}))
}

func fastJSONMarshal(v any) ([]byte, error) {
	return fastJSON.Marshal(v)
}

func fastJSONUnmarshal(data []byte, v any) error {
	return fastJSON.Unmarshal(data, v)
}
