package rewards

// Правило начисления XP за действие пользователя
type ActionRule struct {
	Active  bool       `bson:"active" json:"active" yaml:"active"`
	Maximum bool       `bson:"maximum" json:"maximum" yaml:"maximum"` // конкурирует с суммой обычных правил
	Roll    bool       `bson:"roll" json:"roll" yaml:"roll"`          // начисление проходит через розыгрыш бонуса
	ID      string     `bson:"id" json:"id" yaml:"id"`
	Name    string     `bson:"name" json:"name" yaml:"name"`
	Action  string     `bson:"action" json:"action" yaml:"action"`
	Points  int64      `bson:"points" json:"points" yaml:"points"`
	Percent int64      `bson:"percent" json:"percent" yaml:"percent"` // процент от поля Field
	Field   string     `bson:"field" json:"field,omitempty" yaml:"field"`
	Include []Criteria `bson:"include" json:"include" yaml:"include"`
	Exclude []Criteria `bson:"exclude" json:"exclude" yaml:"exclude"`
}

type Criteria struct {
	Operator   string      `bson:"operator" json:"operator" yaml:"operator"`
	Conditions []Condition `bson:"conditions" json:"conditions" yaml:"conditions"`
}

type Condition struct {
	Field    string `bson:"field" json:"field" yaml:"field"`
	Operator string `bson:"operator" json:"operator" yaml:"operator"`
	Value    any    `bson:"value" json:"value" yaml:"value"`
}
