package converter

// ProductInfoRedisModel — карточка товара в кэше.
type ProductInfoRedisModel struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
	Stock    int64  `json:"stock"`
	Status   string `json:"status"`
}
