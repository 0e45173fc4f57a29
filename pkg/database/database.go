package database

import (
	"fmt"
	"log"
	"school_portal_backend/internal/config"
	"school_portal_backend/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.User{},
		&model.SchoolClass{},
		&model.Student{},
		&model.Subject{},
		&model.SubjectAssignment{},
		&model.Score{},
		&model.TermResult{},
		&model.AffectiveRecord{},
		&model.PsychomotorRecord{},
		&model.Notification{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// First-run admin so the approval side of the pipeline is reachable.
	var count int64
	db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count)
	if count == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		admin := &model.User{
			Name:     "Administrator",
			Email:    "admin@school.local",
			Password: string(hash),
			Role:     model.RoleAdmin,
		}
		if err := db.Create(admin).Error; err != nil {
			return nil, err
		}
		log.Println("Seeded default admin account (admin@school.local)")
	}

	return db, nil
}
