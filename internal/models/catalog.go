package models

type FuelType string

const (
	FuelBenzine FuelType = "benzine"
	FuelElectro FuelType = "electro"
	FuelGas     FuelType = "gas"
)

type Transmission string

const (
	TransmissionAuto     Transmission = "auto"
	TransmissionManually Transmission = "manually"
)

// Brand is a car manufacturer
type Brand struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	BrandName string `json:"brand_name" gorm:"size:128;uniqueIndex;not null"`
}

// CarModel is a model line belonging to exactly one brand
type CarModel struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ModelName string `json:"model_name" gorm:"size:128;uniqueIndex;not null"`
	BrandID   uint   `json:"brand_id" gorm:"index;not null"`

	Brand Brand `json:"-" gorm:"foreignKey:BrandID"`
}

func (CarModel) TableName() string { return "models" }

// Car is a vehicle listed by a seller
type Car struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	BrandID      uint         `json:"brand_id" gorm:"index;not null"`
	ModelID      uint         `json:"model_id" gorm:"index;not null"`
	Description  string       `json:"description" gorm:"type:text"`
	FuelType     FuelType     `json:"fuel_type" gorm:"size:16;not null"`
	Transmission Transmission `json:"transmission" gorm:"size:16;not null"`
	Mileage      int          `json:"mileage" gorm:"not null"`
	Price        float64      `json:"price" gorm:"not null"`
	SellerID     uint         `json:"seller_id" gorm:"index;not null"`

	Brand  Brand    `json:"-" gorm:"foreignKey:BrandID"`
	Model  CarModel `json:"-" gorm:"foreignKey:ModelID"`
	Seller User     `json:"-" gorm:"foreignKey:SellerID"`
}

// CarImage references an image of a car
type CarImage struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	CarImage string `json:"car_image" gorm:"size:1024;not null"`
	CarID    uint   `json:"car_id" gorm:"index;not null"`

	Car Car `json:"-" gorm:"foreignKey:CarID"`
}

type BrandRequest struct {
	BrandName string `json:"brand_name" validate:"required,max=128"`
}

type ModelRequest struct {
	ModelName string `json:"model_name" validate:"required,max=128"`
	BrandID   uint   `json:"brand_id" validate:"required"`
}

// CarRequest is the payload for creating and replacing a car
type CarRequest struct {
	BrandID      uint         `json:"brand_id" validate:"required"`
	ModelID      uint         `json:"model_id" validate:"required"`
	Description  string       `json:"description"`
	FuelType     FuelType     `json:"fuel_type" validate:"required,oneof=benzine electro gas"`
	Transmission Transmission `json:"transmission" validate:"required,oneof=auto manually"`
	Mileage      int          `json:"mileage" validate:"min=0"`
	Price        float64      `json:"price" validate:"min=0"`
	SellerID     uint         `json:"seller_id" validate:"required"`
}

type CarImageRequest struct {
	CarImage string `json:"car_image" validate:"required,max=1024"`
	CarID    uint   `json:"car_id" validate:"required"`
}

// ImageRef is the shape of an image reference inside a car listing
type ImageRef struct {
	Image string `json:"image"`
}

// CarWithImages is a car plus its image references; ImageURL is null when
// the car has no images.
type CarWithImages struct {
	Car
	ImageURL []ImageRef `json:"image_url"`
}

// CarPage is one page of the car listing
type CarPage struct {
	Total int64           `json:"total"`
	Skip  int             `json:"skip"`
	Limit int             `json:"limit"`
	Cars  []CarWithImages `json:"cars"`
}

type BrandDetail struct {
	ID        uint   `json:"id"`
	BrandName string `json:"brand_name"`
	BrandCars []Car  `json:"brand_cars"`
}

type ModelDetail struct {
	ID        uint   `json:"id"`
	ModelName string `json:"model_name"`
	ModelCars []Car  `json:"model_cars"`
}
