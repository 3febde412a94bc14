package planstate

import "github.com/magabrotheeeer/storeplan-sync/internal/models"

// CapabilityChecker решает, поддерживает ли сайт удалённый API тарифов.
type CapabilityChecker interface {
	SupportsPlanAPI(site models.Site) bool
}

// WPComChecker считает доступными только сайты, обслуживаемые WPCom.
type WPComChecker struct{}

// SupportsPlanAPI реализует CapabilityChecker.
func (WPComChecker) SupportsPlanAPI(site models.Site) bool {
	return site.IsWordPressComStore
}
