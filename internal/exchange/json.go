package exchange

import (
	stdjson "encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// json - быстрый кодек, совместимый с encoding/json
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// rawMessage - отложенный фрагмент JSON (совместим с jsoniter)
type rawMessage = stdjson.RawMessage
