package enum

// ── Order lifecycle (enforced by the lifecycle service) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusCooking   = "COOKING"
	OrderStatusReady     = "READY"
	OrderStatusOnWay     = "ON_WAY"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	PaymentMethodCash = "CASH"
	PaymentMethodCard = "CARD"
)

const (
	DeliveryTypeDelivery = "DELIVERY"
	DeliveryTypePickup   = "PICKUP"
)

const (
	OrderTimingASAP      = "ASAP"
	OrderTimingScheduled = "SCHEDULED"
)

// ── Notification dispatch channels ──

const (
	ChannelPrint         = "PRINT"
	ChannelCustomerAlert = "CUSTOMER_ALERT"
)

// ── Users ──

const (
	UserRoleTenant   = "TENANT"
	UserRoleCustomer = "CUSTOMER"
)

const (
	BusinessTypeRestaurant = "RESTAURANT"
	BusinessTypePharmacy   = "PHARMACY"
	BusinessTypeCafe       = "CAFE"
	BusinessTypeGrocery    = "GROCERY"
	BusinessTypeRetail     = "RETAIL"
	BusinessTypeOther      = "OTHER"
)

// ── Till-close shift windows (configurable labels) ──

const (
	ShiftMorning = "MORNING"
	ShiftNight   = "NIGHT"
)

// ── WebSocket event types ──

const (
	EventOrderCreated      = "order.created"
	EventOrderStatus       = "order.status_changed"
	EventOrderStagnant     = "order.stagnant"
	EventFlashSaleStarted  = "flashsale.started"
	EventFlashSaleStopped  = "flashsale.stopped"
	EventCampaignBroadcast = "campaign.sent"
)
