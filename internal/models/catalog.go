package rewards

import "time"

type Badge string

const (
	BadgeBestValue   Badge = "best_value"
	BadgeMostPopular Badge = "most_popular"
	BadgeNew         Badge = "new"
	BadgeLimited     Badge = "limited"
	BadgeNone        Badge = "none"
)

type Category string

const (
	CategoryStarter    Category = "starter"
	CategoryCompliance Category = "compliance"
	CategoryEmployment Category = "employment"
	CategoryTelehealth Category = "telehealth"
	CategoryComplete   Category = "complete"
)

func (b Badge) Valid() bool {
	switch b {
	case BadgeBestValue, BadgeMostPopular, BadgeNew, BadgeLimited, BadgeNone:
		return true
	}
	return false
}

func (c Category) Valid() bool {
	switch c {
	case CategoryStarter, CategoryCompliance, CategoryEmployment, CategoryTelehealth, CategoryComplete:
		return true
	}
	return false
}

// Товар каталога. Цены в центах
type Product struct {
	ID       string   `bson:"id" json:"id" yaml:"id"`
	Name     string   `bson:"name" json:"name" yaml:"name"`
	Price    int64    `bson:"price" json:"price" yaml:"price"`
	Category Category `bson:"category" json:"category" yaml:"category"`
}

type BundleProduct struct {
	ProductID     string `bson:"productid" json:"productId" yaml:"productId"`
	Name          string `bson:"name" json:"name" yaml:"name"`
	OriginalPrice int64  `bson:"originalprice" json:"originalPrice" yaml:"originalPrice"`
}

// Набор товаров со скидкой
type Bundle struct {
	ID          string          `bson:"id" json:"id" yaml:"id"`
	Name        string          `bson:"name" json:"name" yaml:"name"`
	Products    []BundleProduct `bson:"products" json:"products" yaml:"products"`
	BundlePrice int64           `bson:"bundleprice" json:"bundlePrice" yaml:"bundlePrice"`
	Badge       Badge           `bson:"badge" json:"badge" yaml:"badge"`
	Category    Category        `bson:"category" json:"category" yaml:"category"`
}

func (b Bundle) TotalValue() int64 {
	var total int64
	for _, p := range b.Products {
		total += p.OriginalPrice
	}
	return total
}

func (b Bundle) Savings() int64 {
	return b.TotalValue() - b.BundlePrice
}

// Процент экономии, округленный до целого
func (b Bundle) SavingsPercent() int {
	total := b.TotalValue()
	if total <= 0 {
		return 0
	}
	return int((b.Savings()*100 + total/2) / total)
}

type PromoType string

const (
	PromoPercentage PromoType = "percentage"
	PromoFixed      PromoType = "fixed"
)

// Промокод
type PromoCode struct {
	Code        string     `bson:"code" json:"code" yaml:"code"`
	Type        PromoType  `bson:"type" json:"type" yaml:"type"`
	Percent     int64      `bson:"percent" json:"percent,omitempty" yaml:"percent"`
	Amount      int64      `bson:"amount" json:"amount,omitempty" yaml:"amount"`
	MaxDiscount int64      `bson:"maxdiscount" json:"maxDiscount,omitempty" yaml:"maxDiscount"` // 0 - без ограничения
	MinSubtotal int64      `bson:"minsubtotal" json:"minSubtotal,omitempty" yaml:"minSubtotal"`
	Categories  []Category `bson:"categories" json:"categories,omitempty" yaml:"categories"`
	UsageLimit  int64      `bson:"usagelimit" json:"usageLimit,omitempty" yaml:"usageLimit"` // 0 - без ограничения
	StartsAt    *time.Time `bson:"startsat" json:"startsAt,omitempty" yaml:"startsAt"`
	ExpiresAt   *time.Time `bson:"expiresat" json:"expiresAt,omitempty" yaml:"expiresAt"`
	Condition   string     `bson:"condition" json:"condition,omitempty" yaml:"condition"` // CEL
}

// Позиция корзины
type CartItem struct {
	ProductID  string   `json:"productId" yaml:"productId"`
	UnitPrice  int64    `json:"unitPrice" yaml:"unitPrice"`
	Quantity   int64    `json:"quantity" yaml:"quantity"`
	StageName  string   `json:"stageName,omitempty" yaml:"stageName"`
	StagePrice *int64   `json:"stagePrice,omitempty" yaml:"stagePrice"`
	Category   Category `json:"category,omitempty" yaml:"category"`
}

// Цена позиции с учетом этапа
func (c CartItem) LinePrice() int64 {
	price := c.UnitPrice
	if c.StagePrice != nil {
		price = *c.StagePrice
	}
	return price * c.Quantity
}

// Запрос расчета корзины
type PriceRequest struct {
	Items     []CartItem `json:"items" yaml:"items"`
	PromoCode string     `json:"promoCode,omitempty" yaml:"promoCode"`
	RedeemXP  int64      `json:"redeemXP,omitempty" yaml:"redeemXP"`
	TaxRate   string     `json:"taxRate,omitempty" yaml:"taxRate"` // десятичная строка, "0.1"
}

// Результат расчета корзины. Не хранится, пересчитывается на каждый запрос
type CartPricingResult struct {
	Subtotal           int64  `json:"subtotal"`
	BundleDiscount     int64  `json:"bundleDiscount"`
	PromoDiscount      int64  `json:"promoDiscount"`
	XPDiscount         int64  `json:"xpDiscount"`
	TotalDiscount      int64  `json:"totalDiscount"`
	DiscountedSubtotal int64  `json:"discountedSubtotal"`
	Tax                int64  `json:"tax"`
	Total              int64  `json:"total"`
	BundleID           string `json:"bundleId,omitempty"`
	PromoCode          string `json:"promoCode,omitempty"`
	RedeemXP           int64  `json:"redeemXP,omitempty"`
}

type BundleMatch struct {
	Bundle  Bundle `json:"bundle"`
	Savings int64  `json:"savings"`
}

type BundleSuggestion struct {
	BundleID        string          `json:"bundleId"`
	BundleName      string          `json:"bundleName"`
	MissingProducts []BundleProduct `json:"missingProducts"`
	Savings         int64           `json:"savings"`
	Message         string          `json:"message"`
}

type BundleProgress struct {
	BundleID        string `json:"bundleId"`
	BundleName      string `json:"bundleName"`
	OwnedProducts   int    `json:"ownedProducts"`
	TotalProducts   int    `json:"totalProducts"`
	ProgressPercent int    `json:"progressPercent"`
	RemainingValue  int64  `json:"remainingValue"`
}

// Примененный промокод
type PromoApplication struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Eligible int64  `json:"eligible"` // база расчета
}

// Каталог целиком - загружается при старте и только читается
type Catalog struct {
	Products []Product    `json:"products" yaml:"products"`
	Bundles  []Bundle     `json:"bundles" yaml:"bundles"`
	Promos   []PromoCode  `json:"promos" yaml:"promos"`
	Rules    []ActionRule `json:"rules" yaml:"rules"`
}
