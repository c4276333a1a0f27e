package auth

import "github.com/evansochadeka/BenFarm/pkg/models"

type Capability string

const (
	CapBrowseProducts  Capability = "products:browse"
	CapManageInventory Capability = "inventory:manage"
	CapUseCart         Capability = "cart:use"
	CapViewOrders      Capability = "orders:view"
	CapUpdateOrder     Capability = "orders:update"
	CapViewSales       Capability = "sales:view"
	CapDeliver         Capability = "deliveries:view"
	CapPOS             Capability = "pos:use"
	CapCommunity       Capability = "community:use"
	CapMessage         Capability = "messages:use"
	CapAssistant       Capability = "assistant:use"
	CapDetectDisease   Capability = "disease:detect"
	CapViewReports     Capability = "disease:reports"
	CapReviewReports   Capability = "disease:review"
	CapWeather         Capability = "weather:view"
	CapAdmin           Capability = "admin"
	CapModerate        Capability = "community:moderate"
	CapWriteReview     Capability = "reviews:write"
	CapRespondReview   Capability = "reviews:respond"
	CapFindAgrovets    Capability = "agrovets:find"
)

var common = []Capability{
	CapBrowseProducts, CapCommunity, CapMessage, CapAssistant, CapWeather, CapViewOrders,
}

var roleCapabilities = map[models.Role][]Capability{
	models.RoleFarmer: append([]Capability{
		CapUseCart, CapDetectDisease, CapWriteReview, CapFindAgrovets,
	}, common...),
	models.RoleAgrovet: append([]Capability{
		CapManageInventory, CapUseCart, CapPOS, CapViewSales, CapUpdateOrder, CapRespondReview,
	}, common...),
	models.RoleRider: append([]Capability{
		CapDeliver, CapUpdateOrder,
	}, common...),
	models.RoleExtensionOfficer: append([]Capability{
		CapViewReports, CapFindAgrovets,
	}, common...),
	models.RoleAdmin: append([]Capability{
		CapAdmin, CapModerate, CapViewReports, CapReviewReports, CapUpdateOrder, CapUseCart,
	}, common...),
}

var capabilityIndex = func() map[models.Role]map[Capability]bool {
	idx := make(map[models.Role]map[Capability]bool, len(roleCapabilities))
	for role, caps := range roleCapabilities {
		set := make(map[Capability]bool, len(caps))
		for _, c := range caps {
			set[c] = true
		}
		idx[role] = set
	}
	return idx
}()

// Can reports whether role holds capability. Unknown roles hold nothing.
func Can(role models.Role, capability Capability) bool {
	return capabilityIndex[role][capability]
}

// SelfRegisterable reports whether a user may sign up with role.
func SelfRegisterable(role models.Role) bool {
	return role != models.RoleAdmin && role != ""
}
