// Package content holds the read-only static game data: item templates,
// enemy templates with loot tables, and zone spawn nests. The zone layer
// looks templates up by id and never mutates them.
package content

import "fmt"

// ItemClass groups templates for equip validation and inventory sorting.
type ItemClass string

const (
	ItemClassWeapon     ItemClass = "weapon"
	ItemClassArmor      ItemClass = "armor"
	ItemClassAccessory  ItemClass = "accessory"
	ItemClassConsumable ItemClass = "consumable"
	ItemClassMaterial   ItemClass = "material"
)

// ItemTemplate is the static definition behind every item instance.
type ItemTemplate struct {
	ID           string    `yaml:"id" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	Class        ItemClass `yaml:"class" json:"class"`
	EquipSlot    string    `yaml:"equipSlot,omitempty" json:"equipSlot,omitempty"`
	AttackBonus  int       `yaml:"attackBonus,omitempty" json:"attackBonus,omitempty"`
	DefenseBonus int       `yaml:"defenseBonus,omitempty" json:"defenseBonus,omitempty"`
	HealthBonus  int       `yaml:"healthBonus,omitempty" json:"healthBonus,omitempty"`
	Description  string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// Stackable reports whether instances of this template merge into one slot.
// Only materials and consumables stack.
func (t ItemTemplate) Stackable() bool {
	return t.Class == ItemClassMaterial || t.Class == ItemClassConsumable
}

// Equippable reports whether the template declares an equipment slot.
func (t ItemTemplate) Equippable() bool {
	return t.EquipSlot != ""
}

// LootEntry is one row of an enemy's drop table.
type LootEntry struct {
	ItemID string  `yaml:"itemId" json:"itemId"`
	Chance float64 `yaml:"chance" json:"chance"`
	MinQty int     `yaml:"minQty" json:"minQty"`
	MaxQty int     `yaml:"maxQty" json:"maxQty"`
}

// EnemyTemplate is the static definition behind every enemy instance.
type EnemyTemplate struct {
	ID               string      `yaml:"id" json:"id"`
	Name             string      `yaml:"name" json:"name"`
	MaxHealth        int         `yaml:"maxHealth" json:"maxHealth"`
	Attack           int         `yaml:"attack" json:"attack"`
	Defense          int         `yaml:"defense" json:"defense"`
	MoveSpeed        float64     `yaml:"moveSpeed" json:"moveSpeed"`
	AttackRange      float64     `yaml:"attackRange" json:"attackRange"`
	AttackCooldownMS int         `yaml:"attackCooldownMs" json:"attackCooldownMs"`
	AggroRadius      float64     `yaml:"aggroRadius,omitempty" json:"aggroRadius,omitempty"`
	XPReward         int64       `yaml:"xpReward" json:"xpReward"`
	Aggressive       bool        `yaml:"aggressive,omitempty" json:"aggressive,omitempty"`
	Stationary       bool        `yaml:"stationary,omitempty" json:"stationary,omitempty"`
	CanFlee          bool        `yaml:"canFlee,omitempty" json:"canFlee,omitempty"`
	FleeThreshold    float64     `yaml:"fleeThreshold,omitempty" json:"fleeThreshold,omitempty"`
	Loot             []LootEntry `yaml:"loot,omitempty" json:"loot,omitempty"`
}

// SpawnNest anchors a group of enemy instances to a point in the zone and
// refills them after a respawn delay.
type SpawnNest struct {
	TemplateID   string  `yaml:"templateId" json:"templateId"`
	X            float64 `yaml:"x" json:"x"`
	Y            float64 `yaml:"y" json:"y"`
	Count        int     `yaml:"count" json:"count"`
	WanderRadius float64 `yaml:"wanderRadius" json:"wanderRadius"`
	RespawnMS    int     `yaml:"respawnMs" json:"respawnMs"`
}

// Catalog is the full content pack for a zone.
type Catalog struct {
	items   map[string]ItemTemplate
	enemies map[string]EnemyTemplate
	nests   []SpawnNest
}

// Item looks up an item template by id.
func (c *Catalog) Item(id string) (ItemTemplate, bool) {
	if c == nil {
		return ItemTemplate{}, false
	}
	tpl, ok := c.items[id]
	return tpl, ok
}

// Enemy looks up an enemy template by id.
func (c *Catalog) Enemy(id string) (EnemyTemplate, bool) {
	if c == nil {
		return EnemyTemplate{}, false
	}
	tpl, ok := c.enemies[id]
	return tpl, ok
}

// Nests returns the zone's spawn table.
func (c *Catalog) Nests() []SpawnNest {
	if c == nil {
		return nil
	}
	nests := make([]SpawnNest, len(c.nests))
	copy(nests, c.nests)
	return nests
}

func buildCatalog(doc catalogDocument) (*Catalog, error) {
	catalog := &Catalog{
		items:   make(map[string]ItemTemplate, len(doc.Items)),
		enemies: make(map[string]EnemyTemplate, len(doc.Enemies)),
		nests:   append([]SpawnNest(nil), doc.Nests...),
	}
	for _, item := range doc.Items {
		if _, dup := catalog.items[item.ID]; dup {
			return nil, fmt.Errorf("duplicate item template %q", item.ID)
		}
		catalog.items[item.ID] = item
	}
	for _, enemy := range doc.Enemies {
		if _, dup := catalog.enemies[enemy.ID]; dup {
			return nil, fmt.Errorf("duplicate enemy template %q", enemy.ID)
		}
		for _, entry := range enemy.Loot {
			if _, ok := catalog.items[entry.ItemID]; !ok {
				return nil, fmt.Errorf("enemy %q loot references unknown item %q", enemy.ID, entry.ItemID)
			}
		}
		catalog.enemies[enemy.ID] = enemy
	}
	for _, nest := range doc.Nests {
		if _, ok := catalog.enemies[nest.TemplateID]; !ok {
			return nil, fmt.Errorf("nest references unknown enemy template %q", nest.TemplateID)
		}
	}
	return catalog, nil
}
