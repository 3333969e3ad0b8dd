package exchange

import (
	"context"
	"strings"
	"testing"
	"time"

	"tradedesk/internal/models"
)

func TestConnectionTesterPaper(t *testing.T) {
	tester := NewConnectionTester(time.Second, nil)

	result := tester.Test(context.Background(), models.ConnectionConfig{
		Provider: models.ProviderPaper,
	})

	if !result.OK {
		t.Fatalf("тест песочницы должен проходить: %s", result.Error)
	}
	if result.Family != models.FamilyPaperSim {
		t.Errorf("Family = %q, want sim", result.Family)
	}
	if result.Env != models.EnvProd {
		t.Errorf("Env = %q, want prod", result.Env)
	}
	if !result.Capabilities.Read {
		t.Error("матрица возможностей должна попадать в результат")
	}
}

// Ошибка формата ключей обнаруживается без сетевого вызова
func TestConnectionTesterValidationFailure(t *testing.T) {
	tester := NewConnectionTester(time.Second, nil)

	secret := "not%%base64!!"
	result := tester.Test(context.Background(), models.ConnectionConfig{
		Provider:  models.ProviderKraken,
		APIFamily: models.FamilyKrakenSpot,
		Credentials: models.Credentials{
			APIKey:    "key",
			APISecret: secret,
		},
	})

	if result.OK {
		t.Fatal("тест с битым секретом не должен проходить")
	}
	if result.Error == "" {
		t.Fatal("результат без описания ошибки")
	}
	if strings.Contains(result.Error, secret) {
		t.Error("секрет попал в текст ошибки")
	}
}

func TestConnectionTesterUnknownProvider(t *testing.T) {
	tester := NewConnectionTester(time.Second, nil)

	result := tester.Test(context.Background(), models.ConnectionConfig{
		Provider: "bitfinex",
		Credentials: models.Credentials{
			APIKey:    "key",
			APISecret: "dGVzdC1zZWNyZXQ=",
		},
	})

	if result.OK {
		t.Fatal("неизвестный провайдер не должен проходить тест")
	}
	if result.Capabilities != models.ReadOnlyCapabilities() {
		t.Errorf("неизвестный провайдер должен давать read-only матрицу: %+v", result.Capabilities)
	}
}
