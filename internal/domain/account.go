package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	RoleAdmin    = "admin"
	RoleKunde    = "kunde"
	RoleActuator = "actuator"
)

type Account struct {
	ID       primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	Username string             `json:"username" bson:"username"`
	Password string             `json:"password,omitempty" bson:"password"`
	Rollen   []string           `json:"rollen,omitempty" bson:"rollen"`
}
