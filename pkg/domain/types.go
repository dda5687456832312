// Package domain holds the storefront records shared by the catalog client,
// the persistence layer and the local API.
package domain

// User is the profile returned by the catalog login endpoint and mirrored to
// durable storage alongside the bearer token.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender"`
	Image     string `json:"image"`
}

// Valid reports whether the record carries an identity at all. A persisted
// user that decodes to the zero value is treated as missing.
func (u User) Valid() bool {
	return u.ID != 0 || u.Username != ""
}

// DisplayName joins first and last name, falling back to the username.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

type Review struct {
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
	Date          string `json:"date"`
	ReviewerName  string `json:"reviewerName"`
	ReviewerEmail string `json:"reviewerEmail"`
}

type ProductMeta struct {
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	Barcode   string `json:"barcode"`
	QRCode    string `json:"qrCode"`
}

// Product is read-only catalog data. Nothing in this module mutates it.
type Product struct {
	ID                   int64       `json:"id"`
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Category             string      `json:"category"`
	Price                float64     `json:"price"`
	DiscountPercentage   float64     `json:"discountPercentage"`
	Rating               float64     `json:"rating"`
	Stock                int         `json:"stock"`
	Tags                 []string    `json:"tags"`
	Brand                string      `json:"brand,omitempty"`
	SKU                  string      `json:"sku"`
	Weight               float64     `json:"weight"`
	Dimensions           Dimensions  `json:"dimensions"`
	WarrantyInformation  string      `json:"warrantyInformation"`
	ShippingInformation  string      `json:"shippingInformation"`
	AvailabilityStatus   string      `json:"availabilityStatus"`
	Reviews              []Review    `json:"reviews"`
	ReturnPolicy         string      `json:"returnPolicy"`
	MinimumOrderQuantity int         `json:"minimumOrderQuantity"`
	Meta                 ProductMeta `json:"meta"`
	Images               []string    `json:"images"`
	Thumbnail            string      `json:"thumbnail"`
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}

// HasMore reports whether another page follows this one.
func (p ProductPage) HasMore() bool {
	return p.Skip+len(p.Products) < p.Total
}
