package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/tailorcv/tailorcv/app/models"
	"github.com/tailorcv/tailorcv/internal/pkg/cache"
	"github.com/tailorcv/tailorcv/internal/pkg/database"
)

const (
	CacheKeyResumesTotal  = "statistics:resumes:total"
	CacheKeyRewritesDaily = "statistics:rewrites:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyUsers         = "statistics:users:total"
	CacheExpiration       = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers shown on the marketing pages
type StatisticsData struct {
	TodayRewrites int
	TotalUsers    int
	TotalResumes  int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cache is older than the refresh interval
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the statistics cache when it is stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		log.Println("Refreshing statistics cache...")
		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error refreshing statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded to refresh
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalResumes int64
	if err := db.Model(&models.Resume{}).Count(&totalResumes).Error; err != nil {
		log.Printf("Error counting total resumes: %v", err)
		return err
	}

	var todayRewrites int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Resume{}).Where("last_rewrite_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayRewrites).Error; err != nil {
		log.Printf("Error counting today's rewrites: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyResumesTotal, strconv.FormatInt(totalResumes, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total resumes: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyRewritesDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayRewrites, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's rewrites: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Total Resumes: %d, Today's Rewrites: %d, Total Users: %d",
		totalResumes, todayRewrites, totalUsers)

	return nil
}

// GetTotalResumes returns the total number of stored resumes from cache or database
func GetTotalResumes() int {
	val, err := cache.Get(CacheKeyResumesTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Resume{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total resumes: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyResumesTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total resumes: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayRewrites returns the number of rewrites performed today from cache or database
func GetTodayRewrites() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyRewritesDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Resume{}).Where("last_rewrite_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's rewrites: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's rewrites: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatistics returns the aggregate statistics for display
func GetStatistics() StatisticsData {
	return StatisticsData{
		TodayRewrites: GetTodayRewrites(),
		TotalUsers:    GetTotalUsers(),
		TotalResumes:  GetTotalResumes(),
	}
}
