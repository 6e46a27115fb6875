package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// DashboardStats: сводка для панели администратора.
type DashboardStats struct {
	ConfirmedToday        int
	ConfirmedThisWeek     int
	DeliveredThisWeek     int
	TotalSalesThisWeek    decimal.Decimal
	LowStockProductsCount int
	WeekStart             time.Time
	WeekEnd               time.Time
}

// Stats считает сводку относительно момента now. Границы недели берутся из domain.WeekRange.
// Продажи недели считаются как сумма итогов неотменённых заказов, созданных на этой неделе.
func (s *Service) Stats(ctx context.Context, caller Caller, now time.Time) (DashboardStats, error) {
	if err := s.requirePrivileged(ctx, caller); err != nil {
		return DashboardStats{}, err
	}

	dayStart, dayEnd := domain.DayBounds(now)
	weekStart, weekEnd := domain.WeekRange(now)
	today := domain.CreatedBetween{From: dayStart, To: dayEnd}
	week := domain.CreatedBetween{From: weekStart, To: weekEnd}

	stats := DashboardStats{WeekStart: weekStart, WeekEnd: weekEnd}
	g, gctx := errgroup.WithContext(ctx)

	count := func(dst *int, filters ...domain.OrderFilter) func() error {
		return func() error {
			orders, err := s.orders.List(gctx, domain.OrderQuery{Filters: filters})
			if err != nil {
				return err
			}
			*dst = len(orders)
			return nil
		}
	}
	g.Go(count(&stats.ConfirmedToday, domain.ByStatus{Status: domain.OrderStatusConfirmed}, today))
	g.Go(count(&stats.ConfirmedThisWeek, domain.ByStatus{Status: domain.OrderStatusConfirmed}, week))
	g.Go(count(&stats.DeliveredThisWeek, domain.ByStatus{Status: domain.OrderStatusDelivered}, week))

	g.Go(func() error {
		orders, err := s.orders.List(gctx, domain.OrderQuery{Filters: []domain.OrderFilter{week}})
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, o := range orders {
			if o.Status != domain.OrderStatusCancelled {
				total = total.Add(o.Total)
			}
		}
		stats.TotalSalesThisWeek = domain.RoundMoney(total)
		return nil
	})

	g.Go(func() error {
		n, err := s.products.CountLowStock(gctx, s.lowStockThreshold)
		if err != nil {
			return err
		}
		stats.LowStockProductsCount = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}
