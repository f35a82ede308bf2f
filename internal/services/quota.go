package services

import "postbase/internal/models"

// ExceedsFreeQuota 免费用户已有文章数达到上限时返回 true。
// limit 为 3 时等价于 count > 2。
func ExceedsFreeQuota(plan string, count int64, limit int) bool {
	return plan == models.PlanFree && count > int64(limit-1)
}

// ReachedFreeQuota 本次创建后正好用满额度
func ReachedFreeQuota(plan string, countAfter int64, limit int) bool {
	return plan == models.PlanFree && countAfter == int64(limit)
}
