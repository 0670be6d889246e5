// Package admin serves the back-office dashboard, sales analytics and
// customer management.
package admin

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Growth is the percentage change from prev to cur rounded to two places.
// Any rise from zero counts as 100%.
func Growth(cur, prev float64) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return math.Round((cur-prev)/prev*100*100) / 100
}

type CountGrowth struct {
	Current  int64   `json:"current"`
	Previous int64   `json:"previous"`
	Growth   float64 `json:"growth"`
}

func (g *CountGrowth) compute() { g.Growth = Growth(float64(g.Current), float64(g.Previous)) }

type MoneyGrowth struct {
	Current  decimal.Decimal `json:"current"`
	Previous decimal.Decimal `json:"previous"`
	Growth   float64         `json:"growth"`
}

func (g *MoneyGrowth) compute() {
	g.Growth = Growth(g.Current.InexactFloat64(), g.Previous.InexactFloat64())
}

type Overview struct {
	TotalUsers      int64           `json:"totalUsers"`
	TotalProducts   int64           `json:"totalProducts"`
	TotalCategories int64           `json:"totalCategories"`
	TotalOrders     int64           `json:"totalOrders"`
	MonthlyRevenue  decimal.Decimal `json:"monthlyRevenue"`
	YearlyRevenue   decimal.Decimal `json:"yearlyRevenue"`
}

type RecentOrder struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"orderId"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Email       string          `json:"email"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type ProductSales struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	TotalSold int64           `json:"totalSold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type LowStock struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Image     string `json:"image,omitempty"`
}

type CategoryCount struct {
	CategoryID     int64  `json:"categoryId"`
	Name           string `json:"name"`
	ProductCount   int64  `json:"productCount"`
	ActiveProducts int64  `json:"activeProducts"`
}

type Dashboard struct {
	Overview Overview `json:"overview"`
	Growth   struct {
		Users   CountGrowth `json:"users"`
		Orders  CountGrowth `json:"orders"`
		Revenue MoneyGrowth `json:"revenue"`
	} `json:"growth"`
	RecentOrders  []RecentOrder   `json:"recentOrders"`
	TopProducts   []ProductSales  `json:"topProducts"`
	LowStock      []LowStock      `json:"lowStockProducts"`
	CategoryStats []CategoryCount `json:"categoryStats"`
}

func (d *Dashboard) computeGrowth() {
	d.Growth.Users.compute()
	d.Growth.Orders.compute()
	d.Growth.Revenue.compute()
}

// MonthBounds returns the start of the month containing now and of the one
// before it, in now's location.
func MonthBounds(now time.Time) (current, previous time.Time) {
	current = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return current, current.AddDate(0, -1, 0)
}

// Window is the reporting range for analytics: [Start, End) compared with
// the equally long range [PrevStart, Start).
type Window struct {
	Period    string
	Start     time.Time
	PrevStart time.Time
	End       time.Time
	// Bucket is the date_trunc unit of the time series.
	Bucket string
}

// WindowFor maps an analytics period to its range. Unknown periods report
// false.
func WindowFor(period string, now time.Time) (Window, bool) {
	w := Window{Period: period, End: now, Bucket: "day"}
	switch period {
	case "7d":
		w.Start = now.AddDate(0, 0, -7)
		w.PrevStart = w.Start.AddDate(0, 0, -7)
	case "30d":
		w.Start = now.AddDate(0, 0, -30)
		w.PrevStart = w.Start.AddDate(0, 0, -30)
	case "90d":
		w.Start = now.AddDate(0, 0, -90)
		w.PrevStart = w.Start.AddDate(0, 0, -90)
	case "1y":
		w.Start = now.AddDate(-1, 0, 0)
		w.PrevStart = w.Start.AddDate(-1, 0, 0)
		w.Bucket = "month"
	default:
		return Window{}, false
	}
	return w, true
}

type SalesPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int64           `json:"orders"`
}

type RegistrationPoint struct {
	Date          string `json:"date"`
	Registrations int64  `json:"registrations"`
}

type CategorySales struct {
	CategoryID   int64           `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	TotalSold    int64           `json:"totalSold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type MethodSplit struct {
	Method  string          `json:"method"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type CityInsight struct {
	City      string          `json:"city"`
	Customers int64           `json:"customers"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// TopProduct compares units sold with the previous window.
type TopProduct struct {
	ProductID    int64           `json:"productId"`
	Name         string          `json:"name"`
	Sales        int64           `json:"sales"`
	PreviousSold int64           `json:"previousSales"`
	Revenue      decimal.Decimal `json:"revenue"`
	Growth       float64         `json:"growth"`
}

type Metrics struct {
	Revenue      MoneyGrowth `json:"revenue"`
	Orders       CountGrowth `json:"orders"`
	Customers    CountGrowth `json:"customers"`
	AverageOrder MoneyGrowth `json:"averageOrder"`
}

type Analytics struct {
	Period              string              `json:"period"`
	Metrics             Metrics             `json:"metrics"`
	SalesData           []SalesPoint        `json:"salesData"`
	UserRegistrations   []RegistrationPoint `json:"userRegistrations"`
	ProductPerformance  []ProductSales      `json:"productPerformance"`
	TopProducts         []TopProduct        `json:"topProducts"`
	CategoryPerformance []CategorySales     `json:"categoryPerformance"`
	OrdersByStatus      []StatusCount       `json:"ordersByStatus"`
	PaymentMethods      []MethodSplit       `json:"paymentMethods"`
	CustomerInsights    []CityInsight       `json:"customerInsights"`
}

func (a *Analytics) computeGrowth() {
	a.Metrics.Revenue.compute()
	a.Metrics.Orders.compute()
	a.Metrics.Customers.compute()
	a.Metrics.AverageOrder.Current = a.Metrics.AverageOrder.Current.Round(2)
	a.Metrics.AverageOrder.Previous = a.Metrics.AverageOrder.Previous.Round(2)
	a.Metrics.AverageOrder.compute()
	for i := range a.TopProducts {
		p := &a.TopProducts[i]
		p.Growth = Growth(float64(p.Sales), float64(p.PreviousSold))
	}
}
