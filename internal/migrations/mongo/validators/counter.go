package validators

import "go.mongodb.org/mongo-driver/bson"

// CounterValidator admits per-date counters ({_id: date, current}) and the
// single daily_counts document ({_id: "daily_counts", counts}).
var CounterValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id"},
		"oneOf": []bson.M{
			{
				"required": []string{"current"},
				"properties": bson.M{
					"_id": bson.M{
						"bsonType": "string",
						"pattern":  `^\d{4}-\d{2}-\d{2}$`,
					},
					"current": bson.M{
						"bsonType": []string{"int", "long"},
						"minimum":  0,
					},
				},
			},
			{
				"required": []string{"counts"},
				"properties": bson.M{
					"_id": bson.M{
						"enum": []string{"daily_counts"},
					},
					"counts": bson.M{
						"bsonType": "object",
						"additionalProperties": bson.M{
							"bsonType": []string{"int", "long"},
							"minimum":  0,
						},
					},
				},
			},
		},
	},
}
