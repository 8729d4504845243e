package analytics

import (
	"sort"

	"marketplace-assistant/internal/models"
)

const shopDailyWindow = 30

// BuildShopAnalytics summarizes one vendor's orders. Cancelled orders count
// towards totals and the status breakdown but never towards revenue.
func BuildShopAnalytics(orders []models.OrderRow, opts Options) *models.ShopAnalytics {
	opts = opts.withDefaults()

	result := &models.ShopAnalytics{
		TotalOrders:     len(orders),
		StatusBreakdown: make(map[string]int),
	}

	products := make(map[string]*models.ProductSales)
	categories := make(categoryTotals)
	customers := make(map[string]struct{})
	tr := newTrends(opts.Now, shopDailyWindow)
	pr := newPeriods(opts.Now)

	var (
		revenue    float64
		paidOrders int
		ratings    []float64
	)

	for _, o := range orders {
		result.StatusBreakdown[statusKey(o.Status)]++
		if o.CustomerID != "" {
			customers[o.CustomerID] = struct{}{}
		}

		if isCancelled(o.Status) {
			continue
		}

		paidOrders++
		revenue += o.TotalAmount
		tr.add(o.CreatedAt, 1, o.TotalAmount)
		pr.add(o.CreatedAt, o.TotalAmount)

		if opts.PlaceholderRatings && isCompleted(o.Status) {
			ratings = append(ratings, PlaceholderRating)
		}

		for _, item := range o.Items {
			ps, ok := products[item.ProductID]
			if !ok {
				ps = &models.ProductSales{
					ProductID:   item.ProductID,
					ProductName: item.ProductName,
					Category:    item.Category,
				}
				products[item.ProductID] = ps
			}
			ps.Quantity += item.Quantity
			ps.Revenue += item.Subtotal()

			result.ItemsSold += item.Quantity
			categories.add(item.Category, item.Quantity, item.Subtotal())
		}
	}

	result.TotalRevenue = round2(revenue)
	result.AverageOrderValue = ratio(revenue, float64(paidOrders))
	result.UniqueCustomers = len(customers)
	result.TopProducts = topN(rankProducts(products), opts.TopN)
	result.Categories = categories.sorted()
	result.DailyTrend = tr.daily()
	result.MonthlyTrend = tr.monthly()
	result.Growth = pr.growth()

	result.RatingCount = len(ratings)
	result.AverageRating = mean(ratings)
	result.RatingIsPlaceholder = len(ratings) > 0

	return result
}

// rankProducts orders by quantity sold, then revenue, then product id
func rankProducts(products map[string]*models.ProductSales) []models.ProductSales {
	out := make([]models.ProductSales, 0, len(products))
	for _, p := range products {
		p.Revenue = round2(p.Revenue)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}
