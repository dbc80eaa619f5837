// Package tables names every persisted table of the storefront together with
// its schema version, fallback value and legacy migration. The keys are a
// stable contract: changing one orphans the data stored under it.
package tables

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/seed"
)

const (
	KeyProducts    = "gulf_store_products"
	KeySettings    = "gulf_store_settings"
	KeyCountry     = "gulf_user_country"
	KeyAdminAuth   = "gulf_admin_auth"
	KeyOrders      = "gulf_store_orders"
	KeyWelcomeSeen = "gulf_welcome_seen"
	KeyCategories  = "gulf_store_categories"
	KeyStats       = "gulf_store_stats"
	KeySearchStats = "gulf_store_search_stats"
)

// legacyRateSAR converts the pre-USD "price" field, which was entered in riyal.
const legacyRateSAR = 3.75

var (
	Products = kv.Table[[]domain.Product]{
		Key:     KeyProducts,
		Version: 1,
		Default: func() []domain.Product { return seed.Default().Products },
		Migrate: migrateProducts,
	}
	Settings = kv.Table[domain.StoreSettings]{
		Key:     KeySettings,
		Version: 1,
		Default: func() domain.StoreSettings { return seed.Default().Settings },
	}
	Country = kv.Table[domain.CountryConfig]{
		Key:     KeyCountry,
		Version: 1,
		Default: func() domain.CountryConfig { return seed.Countries()[0] },
	}
	AdminAuth = kv.Table[bool]{
		Key:     KeyAdminAuth,
		Version: 1,
		Migrate: migrateFlag,
	}
	Orders = kv.Table[[]domain.Order]{
		Key:     KeyOrders,
		Version: 1,
		Default: func() []domain.Order { return []domain.Order{} },
	}
	WelcomeSeen = kv.Table[bool]{
		Key:     KeyWelcomeSeen,
		Version: 1,
		Migrate: migrateFlag,
	}
	Categories = kv.Table[[]string]{
		Key:     KeyCategories,
		Version: 1,
		Default: func() []string { return seed.Default().Categories },
	}
	Stats = kv.Table[domain.StoreStats]{
		Key:     KeyStats,
		Version: 1,
		Default: func() domain.StoreStats {
			return domain.StoreStats{Daily: map[string]int{}, Sources: map[string]int{}}
		},
	}
	SearchStats = kv.Table[domain.SearchStats]{
		Key:     KeySearchStats,
		Version: 1,
		Default: func() domain.SearchStats { return domain.SearchStats{} },
	}
)

// Keys lists every persisted key.
func Keys() []string {
	return []string{
		KeyProducts, KeySettings, KeyCountry, KeyAdminAuth, KeyOrders,
		KeyWelcomeSeen, KeyCategories, KeyStats, KeySearchStats,
	}
}

// migrateProducts upgrades version 0 catalogs, which carried a riyal "price"
// next to (or instead of) priceUSD.
func migrateProducts(from int, raw json.RawMessage) (json.RawMessage, error) {
	if from != 0 {
		return raw, nil
	}
	var legacy []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy products: %w", err)
	}
	for _, p := range legacy {
		price, hasPrice := p["price"]
		delete(p, "price")
		if _, ok := p["priceUSD"]; ok || !hasPrice {
			continue
		}
		var sar float64
		if err := json.Unmarshal(price, &sar); err != nil {
			return nil, fmt.Errorf("decode legacy price: %w", err)
		}
		usd, err := json.Marshal(sar / legacyRateSAR)
		if err != nil {
			return nil, err
		}
		p["priceUSD"] = usd
	}
	return json.Marshal(legacy)
}

// migrateFlag accepts the bare string "true" older versions wrote.
func migrateFlag(from int, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte(`"true"`)) {
		return json.RawMessage(`true`), nil
	}
	if bytes.Equal(trimmed, []byte(`"false"`)) {
		return json.RawMessage(`false`), nil
	}
	return raw, nil
}
